package pipeline

import (
	"context"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
)

// ShapeStage maps the raw content node onto the persisted record schema.
// Missing id or timestamp attributes become nil, never an error.
type ShapeStage struct{}

func NewShapeStage() *ShapeStage { return &ShapeStage{} }

func (s *ShapeStage) Name() string { return config.StageShape }

func (s *ShapeStage) Process(_ context.Context, item *Item) (*Item, error) {
	item.Shaped = Shape(item.Raw)
	return item, nil
}

func Shape(raw models.RawRecord) *models.ShapedRecord {
	rec := &models.ShapedRecord{Author: raw.Author}
	if raw.Node == nil {
		return rec
	}
	if id, ok := raw.Node.Attr("", IDAttr); ok {
		rec.ID = &id
	}
	if ts, ok := raw.Node.Attr(TimestampSelector, TimestampAttr); ok {
		rec.TimestampEpoch = &ts
	}
	rec.Text = raw.Node.Text(TextSelector)
	return rec
}
