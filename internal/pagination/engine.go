// Package pagination walks a profile timeline: the profile page first, then
// the infinite-scroll continuation endpoint until it reports no more items.
package pagination

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
	"timeline_spider/internal/document"
	"timeline_spider/internal/fetcher"
	"timeline_spider/internal/models"
)

type State int

const (
	StateStart State = iota
	StateContinuing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateContinuing:
		return "Continuing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type Engine struct {
	fetcher  fetcher.Fetcher
	cfg      config.PaginationConfig
	position *regexp.Regexp
	timeout  time.Duration
	maxPages int
	log      *zap.Logger
}

func NewEngine(f fetcher.Fetcher, cfg config.PaginationConfig, logic config.LogicConfig, log *zap.Logger) (*Engine, error) {
	position, err := regexp.Compile(cfg.PositionPattern)
	if err != nil {
		return nil, eris.Wrapf(err, "pagination: compile position pattern %q", cfg.PositionPattern)
	}
	if position.NumSubexp() < 1 {
		return nil, eris.Errorf("pagination: position pattern %q has no capture group", cfg.PositionPattern)
	}
	return &Engine{
		fetcher:  f,
		cfg:      cfg,
		position: position,
		timeout:  logic.FetchTimeout(),
		maxPages: logic.MaxPagesPerSeed,
		log:      log,
	}, nil
}

// Open starts a cursor for seed. No fetch happens until the first Next.
func (e *Engine) Open(seed models.Seed) *Cursor {
	return &Cursor{
		engine: e,
		seed:   seed,
		state:  StateStart,
		log:    e.log.With(zap.String("seed", seed.Raw)),
	}
}

// Cursor is the per-seed pagination state. It is not safe for concurrent use.
type Cursor struct {
	engine *Engine
	seed   models.Seed
	state  State
	author string
	token  string
	steps  int
	log    *zap.Logger
}

func (c *Cursor) State() State { return c.state }

func (c *Cursor) Author() string { return c.author }

// Fetches counts the network fetches issued so far, the profile page included.
func (c *Cursor) Fetches() int { return c.steps }

// Next returns the next page. It returns ErrPaginationExhausted once the
// timeline has been walked; a FetchError or ExtractionError leaves the cursor
// failed, and every later call repeats ErrPaginationExhausted.
func (c *Cursor) Next(ctx context.Context) (*models.Page, error) {
	switch c.state {
	case StateStart:
		return c.first(ctx)
	case StateContinuing:
		if c.engine.maxPages > 0 && c.steps >= c.engine.maxPages {
			c.log.Info("page limit reached", zap.Int("pages", c.steps))
			c.state = StateDone
			return nil, models.ErrPaginationExhausted
		}
		return c.continuation(ctx)
	default:
		return nil, models.ErrPaginationExhausted
	}
}

func (c *Cursor) fetch(ctx context.Context, target string) (*fetcher.Response, error) {
	if c.engine.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.engine.timeout)
		defer cancel()
	}
	c.steps++
	resp, err := c.engine.fetcher.Fetch(ctx, target)
	if err != nil {
		c.state = StateFailed
		return nil, models.NewFetchError(c.seed.Raw, err)
	}
	return resp, nil
}

func (c *Cursor) first(ctx context.Context) (*models.Page, error) {
	resp, err := c.fetch(ctx, c.seed.URL)
	if err != nil {
		return nil, err
	}

	doc, err := document.Parse(resp.Body)
	if err != nil {
		c.state = StateFailed
		return nil, models.NewExtractionError(c.seed.Raw, err)
	}

	href, ok := doc.Attr(c.engine.cfg.AuthorSelector, "href")
	author := strings.TrimPrefix(strings.TrimSpace(href), "/")
	if !ok || author == "" {
		c.state = StateFailed
		return nil, models.NewExtractionError(c.seed.Raw,
			eris.Errorf("author not found with selector %q", c.engine.cfg.AuthorSelector))
	}
	c.author = author

	if m := c.engine.position.FindSubmatch(resp.Body); m != nil && len(m[1]) > 0 {
		c.token = string(m[1])
		c.state = StateContinuing
	} else {
		c.log.Info("no continuation position on profile page, single page crawl")
		c.state = StateDone
	}

	return &models.Page{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Doc:        doc,
		Author:     author,
		Step:       c.steps,
	}, nil
}

func (c *Cursor) continuation(ctx context.Context) (*models.Page, error) {
	target := c.engine.ContinuationURL(c.author, c.token)
	resp, err := c.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	var payload models.ContinuationPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		c.log.Warn("undecodable continuation payload, ending crawl", zap.String("url", target), zap.Error(err))
		c.state = StateDone
		return nil, models.ErrPaginationExhausted
	}

	doc, err := document.ParseString(payload.ItemsHTML)
	if err != nil {
		c.log.Warn("unparsable items fragment, ending crawl", zap.String("url", target), zap.Error(err))
		c.state = StateDone
		return nil, models.ErrPaginationExhausted
	}

	c.advance(&payload)

	return &models.Page{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Doc:        doc,
		Payload:    &payload,
		Author:     c.author,
		Step:       c.steps,
	}, nil
}

// advance decides whether another continuation fetch is due. An explicit
// has_more_items=false always ends the crawl; otherwise the crawl goes on
// only with a fresh, non-empty position.
func (c *Cursor) advance(payload *models.ContinuationPayload) {
	if payload.HasMoreItems != nil && !*payload.HasMoreItems {
		c.state = StateDone
		return
	}
	next := payload.MinPosition
	if next == "" || next == c.token {
		c.log.Info("no new continuation position, ending crawl", zap.String("position", next))
		c.state = StateDone
		return
	}
	c.token = next
}

// ContinuationURL fills the continuation template with author and token.
func (e *Engine) ContinuationURL(author, token string) string {
	return strings.NewReplacer(
		"{user}", url.PathEscape(author),
		"{position}", url.QueryEscape(token),
	).Replace(e.cfg.ContinuationURL)
}
