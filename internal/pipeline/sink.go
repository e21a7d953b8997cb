package pipeline

import (
	"context"

	"timeline_spider/internal/config"
	"timeline_spider/internal/sink"
)

// SinkStage persists the current form of the record and passes it on.
type SinkStage struct {
	writer sink.Writer
}

func NewSinkStage(w sink.Writer) *SinkStage { return &SinkStage{writer: w} }

func (s *SinkStage) Name() string { return config.StageSink }

func (s *SinkStage) Process(ctx context.Context, item *Item) (*Item, error) {
	if err := s.writer.Write(ctx, item.Current()); err != nil {
		return nil, err
	}
	return item, nil
}
