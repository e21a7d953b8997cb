package fetcher

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"timeline_spider/internal/config"
)

const MaxHops = 15

// NewHTTPClient is the plain client used for seed lists and robots.txt.
func NewHTTPClient(cfg config.LogicConfig) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar:     jar,
		Timeout: cfg.FetchTimeout(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxHops {
				return fmt.Errorf("stopped after %d redirects (MaxHops exceeded)", MaxHops)
			}
			return nil
		},
	}
}
