// Package config loads taskweave settings.
//
// Sources, lowest precedence first: built-in defaults, a YAML file, a
// .env file, the process environment (TASKWEAVE_*). Command-line flags are
// applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"taskweave/internal/log"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "taskweave.yaml"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Concurrency int         `yaml:"concurrency"`
	Store       StoreConfig `yaml:"store"`
	StateDir    string      `yaml:"state_dir"`
	Trace       string      `yaml:"trace"`
	Log         LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	Backend     string   `yaml:"backend"`
	Dir         string   `yaml:"dir"`
	CacheSize   int      `yaml:"cache_size"`
	S3          S3Config `yaml:"s3"`
	PostgresDSN string   `yaml:"postgres_dsn"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Concurrency: 1,
		Store: StoreConfig{
			Backend:   BackendFile,
			Dir:       ".taskweave/store",
			CacheSize: 1024,
			S3:        S3Config{Region: "us-east-1", UseSSL: true},
		},
		StateDir: ".taskweave",
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Options select the files Load reads.
type Options struct {
	// ConfigPath is a YAML file. Empty means $TASKWEAVE_CONFIG, then
	// DefaultFile if it exists.
	ConfigPath string
	// EnvFile is a .env file. Empty means ".env" if it exists.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a validated Config.
//
// Variables from the .env file never override the process environment.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}

	cfg := Default()
	path := firstNonEmpty(opts.ConfigPath, lookup("TASKWEAVE_CONFIG"))
	required := path != ""
	if path == "" {
		path = DefaultFile
	}
	if err := cfg.mergeFile(path, required); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil, nil
		}
		path = ".env"
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read env file %s: %w", ErrInvalidConfig, path, err)
	}
	return env, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"TASKWEAVE_STORE", &c.Store.Backend},
		{"TASKWEAVE_STORE_DIR", &c.Store.Dir},
		{"TASKWEAVE_S3_ENDPOINT", &c.Store.S3.Endpoint},
		{"TASKWEAVE_S3_REGION", &c.Store.S3.Region},
		{"TASKWEAVE_S3_ACCESS_KEY", &c.Store.S3.AccessKey},
		{"TASKWEAVE_S3_SECRET_KEY", &c.Store.S3.SecretKey},
		{"TASKWEAVE_S3_BUCKET", &c.Store.S3.Bucket},
		{"TASKWEAVE_S3_PREFIX", &c.Store.S3.Prefix},
		{"TASKWEAVE_PG_DSN", &c.Store.PostgresDSN},
		{"TASKWEAVE_STATE_DIR", &c.StateDir},
		{"TASKWEAVE_TRACE", &c.Trace},
		{"TASKWEAVE_LOG_LEVEL", &c.Log.Level},
		{"TASKWEAVE_LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if v := lookup(s.key); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TASKWEAVE_CONCURRENCY", &c.Concurrency},
		{"TASKWEAVE_CACHE_SIZE", &c.Store.CacheSize},
	}
	for _, i := range ints {
		raw := lookup(i.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, i.key, raw)
		}
		*i.dst = n
	}

	if raw := lookup("TASKWEAVE_S3_USE_SSL"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: TASKWEAVE_S3_USE_SSL=%q is not a boolean", ErrInvalidConfig, raw)
		}
		c.Store.S3.UseSSL = v
	}
	return nil
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.Store.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("store.cache_size must be >= 0, got %d", c.Store.CacheSize))
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.Store.Dir) == "" {
			errs = append(errs, errors.New("store.dir is required for the file backend"))
		}
	case BackendS3:
		s3 := c.Store.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.AccessKey == "" || s3.SecretKey == "" {
			errs = append(errs, errors.New("store.s3 needs endpoint, bucket, access_key and secret_key"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if strings.TrimSpace(c.StateDir) == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LoggerConfig converts the log settings for w. Validate has checked them.
func (c *Config) LoggerConfig(w io.Writer) log.Config {
	level, _ := log.ParseLevel(c.Log.Level)
	format, _ := log.ParseFormat(c.Log.Format)
	return log.Config{Level: level, Format: format, Output: w}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
