package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
)

// FilterStage drops retweets (or everything but retweets, depending on the
// policy) and records whose text is shorter than minLength runes.
type FilterStage struct {
	policy    string
	minLength int
}

func NewFilterStage(policy string, minLength int) (*FilterStage, error) {
	switch policy {
	case config.RetweetDrop, config.RetweetKeepOnly, config.RetweetOff:
	default:
		return nil, eris.Errorf("filter: unknown retweet policy %q", policy)
	}
	if minLength < 0 {
		return nil, eris.Errorf("filter: negative min length %d", minLength)
	}
	return &FilterStage{policy: policy, minLength: minLength}, nil
}

func (s *FilterStage) Name() string { return config.StageFilter }

func (s *FilterStage) Process(_ context.Context, item *Item) (*Item, error) {
	retweet := IsRetweet(item.Raw)
	switch {
	case s.policy == config.RetweetDrop && retweet:
		return nil, models.Dropped("item is a retweet")
	case s.policy == config.RetweetKeepOnly && !retweet:
		return nil, models.Dropped("item is not a retweet")
	}

	if s.minLength > 0 {
		if n := utf8.RuneCountInString(itemText(item)); n < s.minLength {
			return nil, models.Dropped(fmt.Sprintf("item has %d characters, less than %d", n, s.minLength))
		}
	}
	return item, nil
}

// IsRetweet reports whether the content node carries the retweet marker.
func IsRetweet(record models.RawRecord) bool {
	if record.Node == nil {
		return false
	}
	_, ok := record.Node.Attr("", RetweetAttr)
	return ok
}

func itemText(item *Item) string {
	if item.Shaped != nil {
		return item.Shaped.Text
	}
	if item.Raw.Node == nil {
		return ""
	}
	return item.Raw.Node.Text(TextSelector)
}
