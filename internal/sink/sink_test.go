package sink_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline_spider/internal/models"
	"timeline_spider/internal/sink"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), scanner.Text())
		out = append(out, m)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestFileWriter_TruncatesAndWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "output.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o600))

	w, err := sink.OpenFile(path)
	require.NoError(t, err)

	id := "7"
	require.NoError(t, w.Write(context.Background(), &models.ShapedRecord{ID: &id, Author: "nasa", Text: "hi"}))
	require.NoError(t, w.Write(context.Background(), &models.RawView{Author: "esa", HTML: "<div></div>"}))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, map[string]any{"tweet_id": "7", "user": "nasa", "time_epoch": nil, "tweet": "hi"}, lines[0])
	assert.Equal(t, "esa", lines[1]["user"])
	assert.Equal(t, int64(2), w.Lines())
}

func TestFileWriter_ConcurrentWritesKeepLinesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	w, err := sink.OpenFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("%d-%d", g, i)
				assert.NoError(t, w.Write(context.Background(), &models.ShapedRecord{ID: &id, Author: "u", Text: "x"}))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	assert.Len(t, readLines(t, path), 400)
}

func TestFileWriter_CancelledContextWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	w, err := sink.OpenFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Write(ctx, &models.RawView{Author: "u"}), context.Canceled)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Empty(t, readLines(t, path))
	require.Error(t, w.Write(context.Background(), &models.RawView{Author: "u"}))
}

func TestOpenFile_UnwritablePathIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := sink.OpenFile(filepath.Join(blocker, "output.json"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

type fakeStore struct {
	saved  []models.Persistable
	err    error
	closed bool
}

func (s *fakeStore) SaveRecord(_ context.Context, rec models.Persistable) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func TestMongoWriter(t *testing.T) {
	store := &fakeStore{}
	w := sink.NewMongoWriter(store)

	require.NoError(t, w.Write(context.Background(), &models.RawView{Author: "u"}))
	assert.Equal(t, int64(1), w.Saved())

	store.err = errors.New("write concern")
	require.Error(t, w.Write(context.Background(), &models.RawView{Author: "u"}))
	assert.Equal(t, int64(1), w.Saved())

	require.NoError(t, w.Close())
	assert.True(t, store.closed)
}

func TestFileWriter_OpenIsDeferred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o600))

	w := sink.NewFile(path)
	assert.Equal(t, path, w.Path())
	require.Error(t, w.Write(context.Background(), &models.RawView{Author: "u"}))

	// closing an unopened writer leaves the old output in place
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(data))
}

func TestFileWriter_OpenTwiceKeepsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	w, err := sink.OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), &models.RawView{Author: "u"}))
	require.NoError(t, w.Open())
	require.NoError(t, w.Close())

	assert.Len(t, readLines(t, path), 1)
}
