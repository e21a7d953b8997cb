package app

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"timeline_spider/internal/models"
)

// ErrRobotsDisallowed marks a seed skipped because robots.txt forbids it.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// SeedSpider crawls one seed: pages strictly in order, every record of a page
// through the pipeline before the next page is fetched.
type SeedSpider struct {
	app  *SpiderApp
	seed models.Seed
	log  *zap.Logger

	extracted int
	dropped   int
	persisted int
}

func (s *SpiderApp) newSeedSpider(seed models.Seed, log *zap.Logger) *SeedSpider {
	return &SeedSpider{
		app:  s,
		seed: seed,
		log:  log.With(zap.String("seed", seed.Raw)),
	}
}

func (ss *SeedSpider) Crawl(ctx context.Context) {
	ss.log.Info("crawl started", zap.String("url", ss.seed.URL))

	if err := ss.crawl(ctx); err != nil {
		ss.log.Error("crawl failed",
			zap.String("kind", string(models.KindOf(err))),
			zap.Int("persisted", ss.persisted),
			zap.Error(err))
		ss.app.recordFailure(ss.seed, err)
		return
	}

	ss.log.Info("crawl finished",
		zap.Int("extracted", ss.extracted),
		zap.Int("dropped", ss.dropped),
		zap.Int("persisted", ss.persisted))
}

func (ss *SeedSpider) crawl(ctx context.Context) error {
	if ss.app.robots != nil && !ss.app.robots.Allowed(ctx, ss.seed.URL) {
		return models.NewFetchError(ss.seed.Raw, ErrRobotsDisallowed)
	}

	cursor := ss.app.engine.Open(ss.seed)
	for {
		page, err := cursor.Next(ctx)
		if errors.Is(err, models.ErrPaginationExhausted) {
			ss.log.Debug("pagination exhausted", zap.Int("fetches", cursor.Fetches()))
			return nil
		}
		if err != nil {
			return err
		}
		ss.app.pages.Add(1)

		records := ss.app.extractor.Extract(page, page.Author)
		ss.extracted += len(records)
		ss.app.extracted.Add(int64(len(records)))
		ss.log.Debug("page extracted",
			zap.Int("step", page.Step),
			zap.String("url", page.URL),
			zap.Int("records", len(records)))

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return &models.CrawlError{Kind: models.KindCancelled, Seed: ss.seed.Raw, Err: err}
			}
			if err := ss.process(ctx, rec); err != nil {
				return err
			}
		}
	}
}

func (ss *SeedSpider) process(ctx context.Context, rec models.RawRecord) error {
	_, err := ss.app.pipeline.Process(ctx, rec)
	switch {
	case err == nil:
		ss.persisted++
		ss.app.persisted.Add(1)
		return nil
	case errors.Is(err, models.ErrRecordDropped):
		ss.dropped++
		ss.app.dropped.Add(1)
		return nil
	case errors.Is(err, context.Canceled):
		return &models.CrawlError{Kind: models.KindCancelled, Seed: ss.seed.Raw, Err: err}
	default:
		return models.NewSinkError(ss.seed.Raw, eris.Wrap(err, "pipeline"))
	}
}
