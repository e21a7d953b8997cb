package urlqueue

import (
	"net/url"
	"strings"
	"sync"
)

// URLQueue is an insertion-ordered set of URLs. Duplicates are detected on
// the normalized form; the first spelling seen is the one kept.
type URLQueue struct {
	URLs   map[string]bool
	Queue  []string
	Source string
	mu     sync.Mutex
}

func NewURLQueue(source string) *URLQueue {
	return &URLQueue{
		URLs:   make(map[string]bool),
		Queue:  make([]string, 0),
		Source: source,
	}
}

func (q *URLQueue) Add(urlStr string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	normalized := NormalizeURL(urlStr)
	if q.URLs[normalized] {
		return false
	}
	q.URLs[normalized] = true
	q.Queue = append(q.Queue, urlStr)
	return true
}

// Merge adds every entry of other, keeping q's order first.
func (q *URLQueue) Merge(other *URLQueue) int {
	added := 0
	for _, u := range other.Items() {
		if q.Add(u) {
			added++
		}
	}
	return added
}

func (q *URLQueue) Items() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.Queue))
	copy(out, q.Queue)
	return out
}

func (q *URLQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Queue)
}

func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.Trim(urlStr, "/"))
	}

	parsed.Fragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}
