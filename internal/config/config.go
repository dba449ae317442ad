// Package config resolves tap settings from flags, environment, a config
// file and defaults, and validates them before any I/O happens.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"textanywhere/internal/cache"
	"textanywhere/internal/chunker"
	"textanywhere/internal/errs"
	"textanywhere/internal/selector"
	"textanywhere/internal/storage"
)

// Configuration keys.
const (
	KeyStreamName         = "stream_name"
	KeyProtocol           = "protocol"
	KeyFilePath           = "filepath"
	KeyFileRegex          = "file_regex"
	KeyS3Anonymous        = "s3_anonymous_connection"
	KeyAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeyAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeyS3EndpointURL      = "s3_endpoint_url"
	KeyS3Region           = "s3_region"
	KeyGitRef             = "git_ref"
	KeyIgnoreFile         = "ignore_file"
	KeyCachingStrategy    = "caching_strategy"
	KeyCacheDir           = "cache_dir"
	KeyChunkSize          = "chunk_size"
	KeyChunkOverlap       = "chunk_overlap"
	KeyStartDate          = "start_date"
	KeyFailOnDecodeError  = "fail_on_decode_error"
	KeyStateDB            = "state_db"
)

// EnvPrefix prefixes environment overrides, e.g. TEXTANYWHERE_CHUNK_SIZE.
const EnvPrefix = "TEXTANYWHERE"

// DefaultStateDB is where run state lives unless configured.
var DefaultStateDB = filepath.Join(".textanywhere", "state.db")

// Config holds resolved settings.
type Config struct {
	StreamName         string
	Protocol           string
	FilePath           string
	FileRegex          string
	S3Anonymous        bool
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3EndpointURL      string
	S3Region           string
	GitRef             string
	IgnoreFile         string
	CachingStrategy    string
	CacheDir           string
	ChunkSize          int
	ChunkOverlap       int
	StartDate          string
	FailOnDecodeError  bool
	StateDB            string

	pattern  *regexp.Regexp
	start    time.Time
	strategy cache.Strategy
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStreamName, "file")
	v.SetDefault(KeyS3Anonymous, false)
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyCachingStrategy, string(cache.StrategyOnce))
	v.SetDefault(KeyCacheDir, cache.DefaultDir())
	v.SetDefault(KeyChunkSize, 2000)
	v.SetDefault(KeyChunkOverlap, 500)
	v.SetDefault(KeyFailOnDecodeError, false)
	v.SetDefault(KeyStateDB, DefaultStateDB)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Credentials also come from the standard AWS variables.
	v.BindEnv(KeyAWSAccessKeyID, EnvPrefix+"_"+KeyAWSAccessKeyID, KeyAWSAccessKeyID)
	v.BindEnv(KeyAWSSecretAccessKey, EnvPrefix+"_"+KeyAWSSecretAccessKey, KeyAWSSecretAccessKey)
	return v
}

// ReadFile merges a JSON, YAML or TOML config file into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return errs.Config("config", path, "file not found")
		}
		return errs.Config("config", path, err.Error())
	}
	return nil
}

// Load reads every key from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		StreamName:         v.GetString(KeyStreamName),
		Protocol:           v.GetString(KeyProtocol),
		FilePath:           v.GetString(KeyFilePath),
		FileRegex:          v.GetString(KeyFileRegex),
		S3Anonymous:        v.GetBool(KeyS3Anonymous),
		AWSAccessKeyID:     v.GetString(KeyAWSAccessKeyID),
		AWSSecretAccessKey: v.GetString(KeyAWSSecretAccessKey),
		S3EndpointURL:      v.GetString(KeyS3EndpointURL),
		S3Region:           v.GetString(KeyS3Region),
		GitRef:             v.GetString(KeyGitRef),
		IgnoreFile:         v.GetString(KeyIgnoreFile),
		CachingStrategy:    v.GetString(KeyCachingStrategy),
		CacheDir:           v.GetString(KeyCacheDir),
		StartDate:          v.GetString(KeyStartDate),
		FailOnDecodeError:  v.GetBool(KeyFailOnDecodeError),
		StateDB:            v.GetString(KeyStateDB),
	}
	var err error
	if c.ChunkSize, err = intValue(v, KeyChunkSize); err != nil {
		return nil, err
	}
	if c.ChunkOverlap, err = intValue(v, KeyChunkOverlap); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// intValue rejects non-numeric values instead of silently reading zero.
func intValue(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errs.Config(key, strconv.FormatFloat(n, 'f', -1, 64), "must be an integer")
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errs.Config(key, n, "must be an integer")
		}
		return i, nil
	}
	return v.GetInt(key), nil
}

// Validate checks every field that can be checked without touching a
// backend.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return errs.Config(KeyStreamName, "", "must not be empty")
	}
	if c.Protocol == "" {
		return errs.Config(KeyProtocol, "", "is required, use one of "+strings.Join(storage.Protocols(), ", "))
	}
	if !storage.Supported(c.Protocol) {
		return errs.Config(KeyProtocol, c.Protocol, "unsupported protocol, use one of "+strings.Join(storage.Protocols(), ", "))
	}
	if c.FilePath == "" {
		return errs.Config(KeyFilePath, "", "is required")
	}
	if _, err := chunker.NewSplitter(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}

	var err error
	if c.pattern, err = selector.CompilePattern(c.FileRegex); err != nil {
		return err
	}
	if c.strategy, err = cache.ParseStrategy(c.CachingStrategy); err != nil {
		return err
	}
	if c.StartDate != "" {
		if c.start, err = ParseDate(c.StartDate); err != nil {
			return errs.Config(KeyStartDate, c.StartDate, "use RFC 3339 or YYYY-MM-DD")
		}
	}
	return nil
}

// Pattern returns the compiled file_regex, nil when unset.
func (c *Config) Pattern() *regexp.Regexp { return c.pattern }

// Start returns the parsed start_date, zero when unset.
func (c *Config) Start() time.Time { return c.start }

// Strategy returns the parsed caching_strategy.
func (c *Config) Strategy() cache.Strategy { return c.strategy }

// StorageOptions maps the backend settings onto storage.Options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Protocol:        c.Protocol,
		Anonymous:       c.S3Anonymous,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		Endpoint:        c.S3EndpointURL,
		Region:          c.S3Region,
		GitRef:          c.GitRef,
		IgnoreFile:      c.IgnoreFile,
	}
}

// Criteria returns the selection bounds for a run starting at watermark.
func (c *Config) Criteria(watermark time.Time) selector.Criteria {
	return selector.Criteria{
		Root:      c.FilePath,
		Pattern:   c.pattern,
		StartDate: c.start,
		Watermark: watermark,
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps and plain dates. Values without a
// zone are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
