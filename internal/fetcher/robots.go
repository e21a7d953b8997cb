package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsGate answers whether a seed URL may be crawled according to the
// robots.txt of its host. Groups are cached per scheme+host. Failures to load
// robots.txt allow the URL.
type RobotsGate struct {
	client    *http.Client
	userAgent string
	log       *zap.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobotsGate(client *http.Client, userAgent string, log *zap.Logger) *RobotsGate {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		log:       log,
		groups:    make(map[string]*robotstxt.Group),
	}
}

func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := g.group(ctx, u)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (g *RobotsGate) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	g.mu.Lock()
	defer g.mu.Unlock()

	if group, ok := g.groups[origin]; ok {
		return group
	}

	group := g.load(ctx, origin)
	g.groups[origin] = group
	return group
}

func (g *RobotsGate) load(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		g.log.Warn("robots.txt request not built, allowing", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("robots.txt fetch failed, allowing", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.log.Warn("robots.txt parse failed, allowing", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}

	g.log.Debug("robots.txt loaded", zap.String("url", robotsURL))
	return data.FindGroup(g.userAgent)
}
