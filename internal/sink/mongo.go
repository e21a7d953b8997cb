package sink

import (
	"context"
	"sync/atomic"

	"timeline_spider/internal/models"
)

// RecordStore is the storage side of MongoWriter; *db.MongoDB satisfies it.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec models.Persistable) error
	Close() error
}

// MongoWriter upserts records by id. Re-crawled records update in place
// instead of duplicating.
type MongoWriter struct {
	store RecordStore
	saved atomic.Int64
}

func NewMongoWriter(store RecordStore) *MongoWriter {
	return &MongoWriter{store: store}
}

func (w *MongoWriter) Write(ctx context.Context, rec models.Persistable) error {
	if err := w.store.SaveRecord(ctx, rec); err != nil {
		return err
	}
	w.saved.Add(1)
	return nil
}

func (w *MongoWriter) Saved() int64 { return w.saved.Load() }

func (w *MongoWriter) Close() error {
	return w.store.Close()
}
