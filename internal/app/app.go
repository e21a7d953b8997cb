package app

import (
	"context"
	"errors"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timeline_spider/internal/config"
	"timeline_spider/internal/db"
	"timeline_spider/internal/extractor"
	"timeline_spider/internal/fetcher"
	"timeline_spider/internal/models"
	"timeline_spider/internal/pagination"
	"timeline_spider/internal/pipeline"
	"timeline_spider/internal/seeds"
	"timeline_spider/internal/sink"
)

type SeedResolver interface {
	Resolve(ctx context.Context) ([]models.Seed, error)
}

type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Deps are the collaborators SpiderApp talks to. Robots may be nil.
type Deps struct {
	Resolver SeedResolver
	Fetcher  fetcher.Fetcher
	Writer   sink.Writer
	Robots   RobotsChecker
}

type SpiderApp struct {
	config    *config.SpiderConfig
	log       *zap.Logger
	resolver  SeedResolver
	engine    *pagination.Engine
	extractor *extractor.Extractor
	pipeline  *pipeline.Pipeline
	writer    sink.Writer
	robots    RobotsChecker

	pages     atomic.Int64
	extracted atomic.Int64
	dropped   atomic.Int64
	persisted atomic.Int64

	mu       sync.Mutex
	failures []models.SeedFailure
}

// NewSpiderApp wires the production collaborators from cfg: the colly
// fetcher, the seed resolver and the configured sink.
func NewSpiderApp(ctx context.Context, cfg *config.SpiderConfig, log *zap.Logger) (*SpiderApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, models.NewConfigurationError(err)
	}

	client := fetcher.NewHTTPClient(cfg.Logic)

	writer, err := openWriter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Resolver: seeds.NewResolver(cfg.Seeds, client, cfg.Logic.StaticUserAgent(), log),
		Fetcher:  fetcher.NewCollyFetcher(cfg.Logic, log),
		Writer:   writer,
	}
	if cfg.Logic.RespectRobots {
		deps.Robots = fetcher.NewRobotsGate(client, cfg.Logic.StaticUserAgent(), log)
	}

	a, err := New(cfg, log, deps)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	return a, nil
}

func openWriter(ctx context.Context, cfg *config.SpiderConfig, log *zap.Logger) (sink.Writer, error) {
	switch cfg.Sink.Kind {
	case config.SinkMongo:
		mongoDB, err := db.NewMongoDB(ctx, cfg.DB, log)
		if err != nil {
			return nil, models.NewConfigurationError(err)
		}
		return sink.NewMongoWriter(mongoDB), nil
	default:
		return sink.NewFile(cfg.OutputPath()), nil
	}
}

// New assembles a SpiderApp around the given collaborators.
func New(cfg *config.SpiderConfig, log *zap.Logger, deps Deps) (*SpiderApp, error) {
	if deps.Resolver == nil || deps.Fetcher == nil {
		return nil, models.NewConfigurationError(eris.New("app: resolver and fetcher are required"))
	}

	engine, err := pagination.NewEngine(deps.Fetcher, cfg.Pagination, cfg.Logic, log)
	if err != nil {
		return nil, models.NewConfigurationError(err)
	}

	pl, err := pipeline.New(cfg.Pipeline, deps.Writer, log)
	if err != nil {
		return nil, err
	}

	return &SpiderApp{
		config:    cfg,
		log:       log,
		resolver:  deps.Resolver,
		engine:    engine,
		extractor: extractor.New(cfg.Pagination.ContentSelector),
		pipeline:  pl,
		writer:    deps.Writer,
		robots:    deps.Robots,
	}, nil
}

// Run resolves seeds, crawls them concurrently and closes the sink. Only a
// configuration error fails the run; per-seed failures land in the summary.
func (s *SpiderApp) Run(ctx context.Context) (*models.Summary, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	started := time.Now()

	seedList, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.closeWriter(log)
		return nil, err
	}
	if opener, ok := s.writer.(sink.Opener); ok {
		if err := opener.Open(); err != nil {
			s.closeWriter(log)
			return nil, err
		}
	}

	log.Info("starting spiders",
		zap.Int("seeds", len(seedList)),
		zap.Strings("stages", s.pipeline.Stages()),
		zap.Int("max_concurrent_seeds", s.config.Logic.MaxConcurrentSeeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Logic.MaxConcurrentSeeds)
	for _, seed := range seedList {
		seed := seed
		g.Go(func() error {
			s.newSeedSpider(seed, log).Crawl(gctx)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		log.Warn("run interrupted, shutting down")
	}

	s.closeWriter(log)

	summary := s.summary(runID, len(seedList))
	log.Info("run finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int64("pages", summary.Pages),
		zap.Int64("extracted", summary.Extracted),
		zap.Int64("dropped", summary.Dropped),
		zap.Int64("persisted", summary.Persisted),
		zap.Int64("cleaned_fragments", summary.CleanedFragments),
		zap.Int("failed_seeds", len(summary.Failures)))
	return summary, nil
}

func (s *SpiderApp) closeWriter(log *zap.Logger) {
	if s.writer == nil {
		return
	}
	if err := s.writer.Close(); err != nil {
		log.Error("closing sink", zap.Error(err))
		return
	}
	switch w := s.writer.(type) {
	case *sink.FileWriter:
		log.Info("sink closed", zap.String("path", w.Path()), zap.Int64("lines", w.Lines()))
	case *sink.MongoWriter:
		log.Info("sink closed", zap.Int64("upserted", w.Saved()))
	}
}

func (s *SpiderApp) recordFailure(seed models.Seed, err error) {
	kind := models.KindOf(err)
	if errors.Is(err, context.Canceled) {
		kind = models.KindCancelled
	}
	if kind == "" {
		kind = models.KindFetch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, models.SeedFailure{Seed: seed.Raw, Kind: string(kind), Error: err.Error()})
}

func (s *SpiderApp) summary(runID string, seedCount int) *models.Summary {
	s.mu.Lock()
	failures := make([]models.SeedFailure, len(s.failures))
	copy(failures, s.failures)
	s.mu.Unlock()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Seed < failures[j].Seed })

	return &models.Summary{
		RunID:     runID,
		Seeds:     seedCount,
		Pages:     s.pages.Load(),
		Extracted: s.extracted.Load(),
		Dropped:   s.dropped.Load(),
		Persisted: s.persisted.Load(),
		Failures:  failures,

		CleanedFragments: s.pipeline.CleanedFragments(),
	}
}

// ExitCode maps a run outcome onto a process exit status.
func ExitCode(summary *models.Summary, err error) int {
	switch {
	case err != nil:
		return 2
	case summary != nil && len(summary.Failures) > 0:
		return 1
	default:
		return 0
	}
}
