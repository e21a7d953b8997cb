package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

const (
	StageFilter = "filter"
	StageShape  = "shape"
	StageClean  = "clean"
	StageDedup  = "dedup"
	StageSink   = "sink"
)

const (
	RetweetDrop     = "drop"
	RetweetKeepOnly = "keep_only"
	RetweetOff      = "off"
)

// UserAgentRandom makes the page fetcher rotate user agents per request.
const UserAgentRandom = "random"

const defaultUserAgent = "Mozilla/5.0 (TimelineSpider/1.0)"

const (
	SinkFile  = "file"
	SinkMongo = "mongo"
)

type SeedsConfig struct {
	File           string `yaml:"file"`
	Link           string `yaml:"link"`
	Combine        bool   `yaml:"combine"`
	ProfileBaseURL string `yaml:"profile_base_url"`
}

type LogicConfig struct {
	DelayMS            int    `yaml:"delay_ms"`
	TimeoutSec         int    `yaml:"timeout_sec"`
	MaxConcurrentSeeds int    `yaml:"max_concurrent_seeds"`
	MaxPagesPerSeed    int    `yaml:"max_pages_per_seed"`
	UserAgent          string `yaml:"user_agent"`
	RespectRobots      bool   `yaml:"respect_robots"`
}

type PaginationConfig struct {
	ContentSelector string `yaml:"content_selector"`
	AuthorSelector  string `yaml:"author_selector"`
	PositionPattern string `yaml:"position_pattern"`
	ContinuationURL string `yaml:"continuation_url"`
}

type PipelineConfig struct {
	Stages        []string `yaml:"stages"`
	MinLength     int      `yaml:"min_length"`
	RetweetPolicy string   `yaml:"retweet_policy"`
}

type SinkConfig struct {
	Kind       string `yaml:"kind"`
	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Records string `yaml:"records"`
	} `yaml:"collections"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SpiderConfig struct {
	Seeds      SeedsConfig      `yaml:"seeds"`
	Logic      LogicConfig      `yaml:"logic"`
	Pagination PaginationConfig `yaml:"pagination"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Sink       SinkConfig       `yaml:"sink"`
	DB         DBConfig         `yaml:"db"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns a config populated with the values the crawler runs with
// when config.yaml leaves a field empty.
func Default() *SpiderConfig {
	cfg := &SpiderConfig{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(path string) (*SpiderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	var cfg SpiderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "config: parse %s", path)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *SpiderConfig) applyDefaults() {
	if c.Seeds.ProfileBaseURL == "" {
		c.Seeds.ProfileBaseURL = "https://twitter.com/"
	}
	if c.Logic.TimeoutSec <= 0 {
		c.Logic.TimeoutSec = 30
	}
	if c.Logic.MaxConcurrentSeeds <= 0 {
		c.Logic.MaxConcurrentSeeds = 4
	}
	if c.Logic.UserAgent == "" {
		c.Logic.UserAgent = defaultUserAgent
	}
	if c.Pagination.ContentSelector == "" {
		c.Pagination.ContentSelector = "div.tweet"
	}
	if c.Pagination.AuthorSelector == "" {
		c.Pagination.AuthorSelector = "h1.ProfileHeaderCard-name a"
	}
	if c.Pagination.PositionPattern == "" {
		c.Pagination.PositionPattern = `data-min-position="([^"]+?)"`
	}
	if c.Pagination.ContinuationURL == "" {
		c.Pagination.ContinuationURL = "https://twitter.com/i/profiles/show/{user}/timeline/tweets" +
			"?include_available_features=1&include_entities=1&max_position={position}&reset_error_state=false"
	}
	if len(c.Pipeline.Stages) == 0 {
		c.Pipeline.Stages = []string{StageFilter, StageShape, StageClean, StageSink}
	}
	if c.Pipeline.RetweetPolicy == "" {
		c.Pipeline.RetweetPolicy = RetweetDrop
	}
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkFile
	}
	if c.Sink.OutputDir == "" {
		c.Sink.OutputDir = "."
	}
	if c.Sink.OutputFile == "" {
		c.Sink.OutputFile = "output.json"
	}
	if c.DB.Collections.Records == "" {
		c.DB.Collections.Records = "records"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks the settings that can be checked without touching the
// network or the filesystem.
func (c *SpiderConfig) Validate() error {
	if c.Seeds.File == "" && c.Seeds.Link == "" {
		return eris.New("config: no seed source configured (seeds.file or seeds.link)")
	}
	if c.Seeds.Combine && (c.Seeds.File == "" || c.Seeds.Link == "") {
		return eris.New("config: seeds.combine requires both seeds.file and seeds.link")
	}
	if c.Pipeline.MinLength < 0 {
		return eris.Errorf("config: pipeline.min_length must be >= 0, got %d", c.Pipeline.MinLength)
	}
	switch c.Pipeline.RetweetPolicy {
	case RetweetDrop, RetweetKeepOnly, RetweetOff:
	default:
		return eris.Errorf("config: unknown pipeline.retweet_policy %q", c.Pipeline.RetweetPolicy)
	}
	switch c.Sink.Kind {
	case SinkFile:
	case SinkMongo:
		if c.DB.Connection == "" || c.DB.Database == "" {
			return eris.New("config: sink.kind=mongo requires db.connection and db.database")
		}
	default:
		return eris.Errorf("config: unknown sink.kind %q", c.Sink.Kind)
	}
	return nil
}

func (c *SpiderConfig) OutputPath() string {
	return filepath.Join(c.Sink.OutputDir, c.Sink.OutputFile)
}

// StaticUserAgent is the agent sent by the plain HTTP client, which does
// not rotate.
func (l LogicConfig) StaticUserAgent() string {
	if l.UserAgent == UserAgentRandom || l.UserAgent == "" {
		return defaultUserAgent
	}
	return l.UserAgent
}

// FetchTimeout bounds a single request.
func (l LogicConfig) FetchTimeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}

// NewLogger builds a zap logger from the log section. "console" selects the
// development encoder, anything else the production JSON encoder.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
