package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timeline_spider/internal/app"
	"timeline_spider/internal/config"
)

type options struct {
	configPath    string
	seedFile      string
	seedLink      string
	combine       bool
	minLength     int
	outputDir     string
	retweetPolicy string
	logLevel      string
}

func main() {
	os.Exit(execute())
}

func execute() int {
	exitCode := 0
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "timeline_spider",
		Short:         "Crawl paginated profile timelines into a record sink",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := run(cmd, opts)
			exitCode = code
			return err
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	flags.StringVar(&opts.seedFile, "seed-file", "", "file with one profile URL or username per line")
	flags.StringVar(&opts.seedLink, "seed-link", "", "URL of a remote seed list")
	flags.BoolVar(&opts.combine, "combine", false, "crawl the union of --seed-file and --seed-link")
	flags.IntVar(&opts.minLength, "min-length", 0, "drop records whose text is shorter than this")
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory for the output file")
	flags.StringVar(&opts.retweetPolicy, "retweet-policy", "", "drop, keep_only or off")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "timeline_spider:", err)
		if exitCode == 0 {
			exitCode = 2
		}
	}
	return exitCode
}

func run(cmd *cobra.Command, opts *options) (int, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return 2, err
	}
	applyFlags(cmd, opts, cfg)

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return 2, err
	}
	defer func() { _ = log.Sync() }()

	spider, err := app.NewSpiderApp(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("spider setup failed", zap.Error(err))
		return app.ExitCode(nil, err), err
	}

	summary, err := spider.Run(cmd.Context())
	if err != nil {
		log.Error("spider run failed", zap.Error(err))
		return app.ExitCode(summary, err), err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return 2, eris.Wrap(err, "encode summary")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return app.ExitCode(summary, nil), nil
}

// loadConfig falls back to built-in defaults when the file does not exist.
func loadConfig(path string) (*config.SpiderConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.SpiderConfig) {
	changed := cmd.Flags().Changed
	if changed("seed-file") {
		cfg.Seeds.File = opts.seedFile
	}
	if changed("seed-link") {
		cfg.Seeds.Link = opts.seedLink
	}
	if changed("combine") {
		cfg.Seeds.Combine = opts.combine
	}
	if changed("min-length") {
		cfg.Pipeline.MinLength = opts.minLength
	}
	if changed("output-dir") {
		cfg.Sink.OutputDir = opts.outputDir
	}
	if changed("retweet-policy") {
		cfg.Pipeline.RetweetPolicy = opts.retweetPolicy
	}
	if changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
}
