package pipeline

import (
	"context"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"

	"timeline_spider/internal/config"
)

// CleanRule removes every match of Pattern from the record text.
type CleanRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultCleanRules strips links first, then media links. Removed spans are
// not trimmed: the surrounding whitespace stays in the text.
func DefaultCleanRules() []CleanRule {
	return []CleanRule{
		{Name: "url", Pattern: regexp.MustCompile(`https?://\S+`)},
		{Name: "media", Pattern: regexp.MustCompile(`pic\.twitter\.com/\S+`)},
	}
}

// maxCleanPasses bounds the fixpoint loop in Clean.
const maxCleanPasses = 8

// CleanStage removes links from shaped text. It never drops a record.
type CleanStage struct {
	rules    []CleanRule
	removals atomic.Int64
	log      *zap.Logger
}

func NewCleanStage(rules []CleanRule, log *zap.Logger) *CleanStage {
	return &CleanStage{rules: rules, log: log}
}

func (s *CleanStage) Name() string { return config.StageClean }

func (s *CleanStage) Process(_ context.Context, item *Item) (*Item, error) {
	if item.Shaped == nil {
		return item, nil
	}
	item.Shaped.Text = s.Clean(item.Shaped.Text)
	return item, nil
}

// Clean applies the rules in order until the text stops changing, so
// Clean(Clean(x)) == Clean(x).
func (s *CleanStage) Clean(text string) string {
	for pass := 0; pass < maxCleanPasses; pass++ {
		changed := false
		for _, rule := range s.rules {
			matches := rule.Pattern.FindAllString(text, -1)
			if len(matches) == 0 {
				continue
			}
			for _, m := range matches {
				s.log.Debug("removed fragment", zap.String("rule", rule.Name), zap.String("fragment", m))
			}
			s.removals.Add(int64(len(matches)))
			text = rule.Pattern.ReplaceAllString(text, "")
			changed = true
		}
		if !changed {
			break
		}
	}
	return text
}

// Removals counts fragments removed since the stage was built.
func (s *CleanStage) Removals() int64 {
	return s.removals.Load()
}
