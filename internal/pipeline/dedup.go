package pipeline

import (
	"context"
	"sync"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
)

// DedupStage drops records whose id was already seen during this run. It is
// shared by every seed worker; records without an id always pass.
type DedupStage struct {
	seen sync.Map
}

func NewDedupStage() *DedupStage { return &DedupStage{} }

func (s *DedupStage) Name() string { return config.StageDedup }

func (s *DedupStage) Process(_ context.Context, item *Item) (*Item, error) {
	if item.Shaped == nil || item.Shaped.ID == nil {
		return item, nil
	}
	if _, loaded := s.seen.LoadOrStore(*item.Shaped.ID, struct{}{}); loaded {
		return nil, models.Dropped("duplicate id " + *item.Shaped.ID)
	}
	return item, nil
}
