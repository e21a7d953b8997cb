package seeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
	"timeline_spider/internal/seeds"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func listServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newResolver(cfg config.SeedsConfig, client *http.Client) *seeds.Resolver {
	if cfg.ProfileBaseURL == "" {
		cfg.ProfileBaseURL = "https://twitter.com/"
	}
	return seeds.NewResolver(cfg, client, "test-agent", zap.NewNop())
}

func TestResolve_FileOnly(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "https://twitter.com/nasa\nesa\n\nhttps://twitter.com/nasa/\n")

	got, err := newResolver(config.SeedsConfig{File: path}, nil).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://twitter.com/nasa", got[0].URL)
	assert.Equal(t, "esa", got[1].Raw)
	assert.Equal(t, "https://twitter.com/esa", got[1].URL)
}

func TestResolve_LinkOnly(t *testing.T) {
	t.Parallel()

	srv, _ := listServer(t, http.StatusOK, "https://twitter.com/a\nhttps://twitter.com/b\n")

	got, err := newResolver(config.SeedsConfig{Link: srv.URL}, srv.Client()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestResolve_LinkNon200YieldsNoSeeds(t *testing.T) {
	t.Parallel()

	srv, _ := listServer(t, http.StatusInternalServerError, "https://twitter.com/a\n")

	_, err := newResolver(config.SeedsConfig{Link: srv.URL}, srv.Client()).Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestResolve_CombineIsUnion(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "https://twitter.com/a\nhttps://twitter.com/b\n")
	srv, _ := listServer(t, http.StatusOK, "https://twitter.com/b\nhttps://twitter.com/c\n")

	got, err := newResolver(config.SeedsConfig{File: path, Link: srv.URL, Combine: true}, srv.Client()).
		Resolve(context.Background())
	require.NoError(t, err)

	urls := make([]string, 0, len(got))
	for _, s := range got {
		urls = append(urls, s.URL)
	}
	assert.Equal(t, []string{"https://twitter.com/a", "https://twitter.com/b", "https://twitter.com/c"}, urls)
}

func TestResolve_CombineFailsWhenLinkReturns404(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "https://twitter.com/a\n")
	srv, hits := listServer(t, http.StatusNotFound, "not found")

	_, err := newResolver(config.SeedsConfig{File: path, Link: srv.URL, Combine: true}, srv.Client()).
		Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestResolve_CombineRequiresBothSources(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "https://twitter.com/a\n")

	_, err := newResolver(config.SeedsConfig{File: path, Combine: true}, nil).Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestResolve_FileWinsWithoutCombine(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "https://twitter.com/a\n")
	srv, hits := listServer(t, http.StatusOK, "https://twitter.com/z\n")

	got, err := newResolver(config.SeedsConfig{File: path, Link: srv.URL}, srv.Client()).
		Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://twitter.com/a", got[0].URL)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestResolve_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := newResolver(config.SeedsConfig{File: filepath.Join(t.TempDir(), "nope.txt")}, nil).
		Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}
