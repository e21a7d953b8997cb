// Package fetcher performs single page fetches for the pagination engine.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
)

// Response is the raw result of one fetch.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher issues exactly one network request per call. Implementations do
// not retry and do not cache.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// CollyFetcher runs every fetch through a clone of one configured colly
// collector, so limits and transport are shared while callbacks stay per call.
type CollyFetcher struct {
	collector *colly.Collector
	random    bool
	log       *zap.Logger
}

func NewCollyFetcher(cfg config.LogicConfig, log *zap.Logger) *CollyFetcher {
	random := cfg.UserAgent == config.UserAgentRandom
	c := colly.NewCollector(colly.AllowURLRevisit())
	if !random {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(cfg.FetchTimeout())

	if cfg.DelayMS > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       time.Duration(cfg.DelayMS) * time.Millisecond,
		}); err != nil {
			log.Warn("colly limit rule rejected", zap.Error(err))
		}
	}

	return &CollyFetcher{collector: c, random: random, log: log}
}

type fetchResult struct {
	resp *Response
	err  error
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clone drops callbacks, so the random agent is registered per fetch.
	c := f.collector.Clone()
	if f.random {
		extensions.RandomUserAgent(c)
	}

	var result Response
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		result.URL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
		result.Body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
	})

	done := make(chan fetchResult, 1)
	go func() {
		err := c.Visit(url)
		done <- fetchResult{resp: &result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if res.resp.StatusCode != 0 {
				return nil, &StatusError{URL: url, StatusCode: res.resp.StatusCode}
			}
			return nil, eris.Wrapf(res.err, "fetch %s", url)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if res.resp.StatusCode < http.StatusOK || res.resp.StatusCode >= http.StatusMultipleChoices {
			return nil, &StatusError{URL: url, StatusCode: res.resp.StatusCode}
		}
		if res.resp.URL == "" {
			res.resp.URL = url
		}
		f.log.Debug("fetched", zap.String("url", url), zap.Int("status", res.resp.StatusCode),
			zap.Int("bytes", len(res.resp.Body)))
		return res.resp, nil
	}
}
