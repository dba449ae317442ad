package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"textanywhere/internal/config"
	"textanywhere/internal/logging"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string

	// v collects flags, TEXTANYWHERE_* env vars, the config file and
	// defaults for every command.
	v = config.New()

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:          "textanywhere",
	Short:        "Extract chunked text from files on local disk, S3 or git as Singer records",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(os.Stderr, flagLogLevel, flagLogFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return config.ReadFile(v, flagConfig)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// sourceFlags maps flag names to configuration keys.
var sourceFlags = map[string]string{
	"stream-name":          config.KeyStreamName,
	"protocol":             config.KeyProtocol,
	"filepath":             config.KeyFilePath,
	"file-regex":           config.KeyFileRegex,
	"s3-anonymous":         config.KeyS3Anonymous,
	"s3-endpoint-url":      config.KeyS3EndpointURL,
	"s3-region":            config.KeyS3Region,
	"git-ref":              config.KeyGitRef,
	"ignore-file":          config.KeyIgnoreFile,
	"caching-strategy":     config.KeyCachingStrategy,
	"cache-dir":            config.KeyCacheDir,
	"chunk-size":           config.KeyChunkSize,
	"chunk-overlap":        config.KeyChunkOverlap,
	"start-date":           config.KeyStartDate,
	"fail-on-decode-error": config.KeyFailOnDecodeError,
	"state-db":             config.KeyStateDB,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (JSON, YAML or TOML)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")

	pf.String("stream-name", "file", "Singer stream name")
	pf.String("protocol", "", "storage protocol: file, s3 or git")
	pf.String("filepath", "", "root to list: a directory, bucket/prefix or repo-url//subdir")
	pf.String("file-regex", "", "only process files whose name matches this pattern from its start")
	pf.Bool("s3-anonymous", false, "connect to S3 without credentials")
	pf.String("s3-endpoint-url", "", "S3-compatible endpoint URL")
	pf.String("s3-region", "us-east-1", "S3 region")
	pf.String("git-ref", "", "branch to clone for the git protocol")
	pf.String("ignore-file", "", "gitignore-syntax file applied to local listings")
	pf.String("caching-strategy", "once", "staging of remote files: none, once or persistent")
	pf.String("cache-dir", "", "directory for persistent staging (default $TMPDIR/textanywhere-cache)")
	pf.Int("chunk-size", 2000, "maximum chunk length in characters")
	pf.Int("chunk-overlap", 500, "characters shared by consecutive chunks")
	pf.String("start-date", "", "skip files last modified at or before this date (RFC 3339 or YYYY-MM-DD)")
	pf.Bool("fail-on-decode-error", false, "abort the run when a file cannot be decoded")
	pf.String("state-db", config.DefaultStateDB, "SQLite file holding bookmarks, cache index and run history")

	for name, key := range sourceFlags {
		v.BindPFlag(key, pf.Lookup(name))
	}
}
