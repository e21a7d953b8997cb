package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline_spider/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
seeds:
  file: urls.txt
pipeline:
  min_length: 10
`)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "urls.txt", cfg.Seeds.File)
	assert.Equal(t, 10, cfg.Pipeline.MinLength)
	assert.Equal(t, []string{"filter", "shape", "clean", "sink"}, cfg.Pipeline.Stages)
	assert.Equal(t, config.RetweetDrop, cfg.Pipeline.RetweetPolicy)
	assert.Equal(t, config.SinkFile, cfg.Sink.Kind)
	assert.Equal(t, filepath.Join(".", "output.json"), cfg.OutputPath())
	assert.Equal(t, "div.tweet", cfg.Pagination.ContentSelector)
	assert.Equal(t, 4, cfg.Logic.MaxConcurrentSeeds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.LoadConfig(writeConfig(t, "seeds: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.SpiderConfig)
		ok     bool
	}{
		{"file only", func(c *config.SpiderConfig) { c.Seeds.File = "urls.txt" }, true},
		{"no seeds", func(*config.SpiderConfig) {}, false},
		{"combine without link", func(c *config.SpiderConfig) {
			c.Seeds.File = "urls.txt"
			c.Seeds.Combine = true
		}, false},
		{"negative min length", func(c *config.SpiderConfig) {
			c.Seeds.File = "urls.txt"
			c.Pipeline.MinLength = -1
		}, false},
		{"unknown retweet policy", func(c *config.SpiderConfig) {
			c.Seeds.File = "urls.txt"
			c.Pipeline.RetweetPolicy = "sometimes"
		}, false},
		{"mongo without connection", func(c *config.SpiderConfig) {
			c.Seeds.File = "urls.txt"
			c.Sink.Kind = config.SinkMongo
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	log, err := config.NewLogger(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = config.NewLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
