// Package seeds resolves the set of crawl seeds from a local list file, a
// remote list, or the union of both.
package seeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
	urlqueue "timeline_spider/internal/url_queue"
)

type Resolver struct {
	cfg    config.SeedsConfig
	client *http.Client
	ua     string
	log    *zap.Logger
}

func NewResolver(cfg config.SeedsConfig, client *http.Client, userAgent string, log *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{cfg: cfg, client: client, ua: userAgent, log: log}
}

// Resolve returns the deduplicated seeds in first-seen order. Every failure
// is a configuration error: nothing has been crawled yet.
func (r *Resolver) Resolve(ctx context.Context) ([]models.Seed, error) {
	queue, err := r.resolveQueue(ctx)
	if err != nil {
		return nil, models.NewConfigurationError(err)
	}
	if queue.Size() == 0 {
		return nil, models.NewConfigurationError(eris.New("seeds: no seeds resolved"))
	}

	seeds := make([]models.Seed, 0, queue.Size())
	for _, raw := range queue.Items() {
		seeds = append(seeds, models.Seed{Raw: raw, URL: r.profileURL(raw)})
	}
	r.log.Info("seeds resolved", zap.Int("count", len(seeds)), zap.String("source", queue.Source))
	return seeds, nil
}

func (r *Resolver) resolveQueue(ctx context.Context) (*urlqueue.URLQueue, error) {
	hasFile, hasLink := r.cfg.File != "", r.cfg.Link != ""

	switch {
	case r.cfg.Combine:
		if !hasFile || !hasLink {
			return nil, eris.New("seeds: combine requires both a seed file and a seed link")
		}
		fromFile, err := r.fromFile()
		if err != nil {
			return nil, err
		}
		fromLink, err := r.fromLink(ctx)
		if err != nil {
			return nil, err
		}
		if fromFile.Size() == 0 || fromLink.Size() == 0 {
			return nil, eris.Errorf("seeds: combine requires both sources to be non-empty (file=%d, link=%d)",
				fromFile.Size(), fromLink.Size())
		}
		fromFile.Source = "file+link"
		fromFile.Merge(fromLink)
		return fromFile, nil
	case hasFile:
		if hasLink {
			r.log.Warn("both seed sources configured without combine, using file", zap.String("link", r.cfg.Link))
		}
		return r.fromFile()
	case hasLink:
		return r.fromLink(ctx)
	default:
		return nil, eris.New("seeds: no seed source configured")
	}
}

func (r *Resolver) fromFile() (*urlqueue.URLQueue, error) {
	f, err := os.Open(r.cfg.File)
	if err != nil {
		return nil, eris.Wrapf(err, "seeds: open %s", r.cfg.File)
	}
	defer f.Close()
	return urlqueue.ReadLines("file", f)
}

// fromLink fetches a remote list. Any status but 200 yields an empty list.
func (r *Resolver) fromLink(ctx context.Context) (*urlqueue.URLQueue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.Link, http.NoBody)
	if err != nil {
		return nil, eris.Wrapf(err, "seeds: build request for %s", r.cfg.Link)
	}
	if r.ua != "" {
		req.Header.Set("User-Agent", r.ua)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "seeds: fetch %s", r.cfg.Link)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("seed link returned non-200, no seeds taken from it",
			zap.String("link", r.cfg.Link), zap.Int("status", resp.StatusCode))
		_, _ = io.Copy(io.Discard, resp.Body)
		return urlqueue.NewURLQueue("link"), nil
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}
	return urlqueue.ReadLines("link", utf8Reader)
}

// profileURL expands a bare user identifier into a profile URL.
func (r *Resolver) profileURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return raw
	}
	user := strings.Trim(strings.TrimPrefix(raw, "@"), "/")
	return fmt.Sprintf("%s/%s", strings.TrimRight(r.cfg.ProfileBaseURL, "/"), url.PathEscape(user))
}
