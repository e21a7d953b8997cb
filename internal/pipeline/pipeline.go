// Package pipeline runs raw records through an ordered chain of stages. A
// stage either passes the record on, possibly reshaped, or drops it by
// returning an error wrapping models.ErrRecordDropped.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
	"timeline_spider/internal/sink"
)

// Markup the stages read from a content node.
const (
	TextSelector      = "p.tweet-text"
	TimestampSelector = "span._timestamp"
	IDAttr            = "data-tweet-id"
	TimestampAttr     = "data-time"
	RetweetAttr       = "data-retweet-id"
)

// Item is one record on its way through the pipeline. Shaped is nil until
// the shape stage has run.
type Item struct {
	Raw    models.RawRecord
	Shaped *models.ShapedRecord
}

// Current is the form the record has reached, as a sink would store it.
func (it *Item) Current() models.Persistable {
	if it.Shaped != nil {
		return it.Shaped
	}
	view := &models.RawView{Author: it.Raw.Author}
	if it.Raw.Node != nil {
		view.HTML = it.Raw.Node.HTML()
	}
	return view
}

type Stage interface {
	Name() string
	Process(ctx context.Context, item *Item) (*Item, error)
}

type Pipeline struct {
	stages []Stage
	log    *zap.Logger
}

// New builds the stages named in cfg.Stages, in that order.
func New(cfg config.PipelineConfig, writer sink.Writer, log *zap.Logger) (*Pipeline, error) {
	if err := validateOrder(cfg.Stages); err != nil {
		return nil, models.NewConfigurationError(err)
	}

	stages := make([]Stage, 0, len(cfg.Stages))
	for _, name := range cfg.Stages {
		switch name {
		case config.StageFilter:
			filter, err := NewFilterStage(cfg.RetweetPolicy, cfg.MinLength)
			if err != nil {
				return nil, models.NewConfigurationError(err)
			}
			stages = append(stages, filter)
		case config.StageShape:
			stages = append(stages, NewShapeStage())
		case config.StageClean:
			stages = append(stages, NewCleanStage(DefaultCleanRules(), log))
		case config.StageDedup:
			stages = append(stages, NewDedupStage())
		case config.StageSink:
			if writer == nil {
				return nil, models.NewConfigurationError(eris.New("pipeline: sink stage configured without a writer"))
			}
			stages = append(stages, NewSinkStage(writer))
		}
	}
	return NewWithStages(log, stages...), nil
}

// NewWithStages composes already built stages.
func NewWithStages(log *zap.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log}
}

func validateOrder(names []string) error {
	if len(names) == 0 {
		return eris.New("pipeline: no stages configured")
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		switch name {
		case config.StageFilter, config.StageShape, config.StageClean, config.StageDedup, config.StageSink:
		default:
			return eris.Errorf("pipeline: unknown stage %q", name)
		}
		if seen[name] {
			return eris.Errorf("pipeline: stage %q listed twice", name)
		}
		if (name == config.StageClean || name == config.StageDedup) && !seen[config.StageShape] {
			return eris.Errorf("pipeline: stage %q must come after %q", name, config.StageShape)
		}
		seen[name] = true
	}
	if !seen[config.StageSink] {
		return eris.New("pipeline: no sink stage configured")
	}
	return nil
}

func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// CleanedFragments sums the fragments removed by every clean stage.
func (p *Pipeline) CleanedFragments() int64 {
	var n int64
	for _, s := range p.stages {
		if clean, ok := s.(*CleanStage); ok {
			n += clean.Removals()
		}
	}
	return n
}

// Process runs record through every stage. A drop stops the chain and is
// returned as an error matching models.ErrRecordDropped.
func (p *Pipeline) Process(ctx context.Context, record models.RawRecord) (*Item, error) {
	item := &Item{Raw: record}
	for _, stage := range p.stages {
		next, err := stage.Process(ctx, item)
		if err != nil {
			if errors.Is(err, models.ErrRecordDropped) {
				p.log.Debug("record dropped",
					zap.String("stage", stage.Name()),
					zap.String("author", record.Author),
					zap.String("reason", err.Error()))
				return nil, err
			}
			return nil, eris.Wrapf(err, "stage %s", stage.Name())
		}
		item = next
	}
	return item, nil
}
