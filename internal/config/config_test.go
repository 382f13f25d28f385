package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskweave/internal/log"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{Getenv: envMap(nil)})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestLoad_Precedence(t *testing.T) {
	cfgPath := writeFile(t, "taskweave.yaml", `
concurrency: 3
store:
  backend: memory
  cache_size: 10
log:
  level: debug
trace: from-file.json
`)
	envPath := writeFile(t, ".env", "TASKWEAVE_CONCURRENCY=5\nTASKWEAVE_LOG_FORMAT=json\nTASKWEAVE_TRACE=from-dotenv.json\n")

	cfg, err := Load(Options{
		ConfigPath: cfgPath,
		EnvFile:    envPath,
		Getenv:     envMap(map[string]string{"TASKWEAVE_CONCURRENCY": "7"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Concurrency, "process env beats .env and file")
	assert.Equal(t, "json", cfg.Log.Format, ".env beats defaults")
	assert.Equal(t, "from-dotenv.json", cfg.Trace, ".env beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "file beats defaults")
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 10, cfg.Store.CacheSize)
	assert.Equal(t, ".taskweave", cfg.StateDir, "unset keys keep defaults")
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	cfgPath := writeFile(t, "c.yaml", "state_dir: /tmp/tw-state\n")
	cfg, err := Load(Options{Getenv: envMap(map[string]string{"TASKWEAVE_CONFIG": cfgPath})})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tw-state", cfg.StateDir)
}

func TestLoad_S3FromEnv(t *testing.T) {
	cfg, err := Load(Options{Getenv: envMap(map[string]string{
		"TASKWEAVE_STORE":         "s3",
		"TASKWEAVE_S3_ENDPOINT":   "localhost:9000",
		"TASKWEAVE_S3_BUCKET":     "tw",
		"TASKWEAVE_S3_ACCESS_KEY": "ak",
		"TASKWEAVE_S3_SECRET_KEY": "sk",
		"TASKWEAVE_S3_USE_SSL":    "false",
	})})
	require.NoError(t, err)
	assert.Equal(t, S3Config{Endpoint: "localhost:9000", Region: "us-east-1", AccessKey: "ak", SecretKey: "sk", Bucket: "tw"}, cfg.Store.S3)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]Options{
		"missing explicit file": {ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")},
		"missing env file":      {EnvFile: filepath.Join(t.TempDir(), "nope.env")},
		"unknown yaml field":    {ConfigPath: writeFile(t, "c.yaml", "concurency: 2\n")},
		"bad int":               {Getenv: envMap(map[string]string{"TASKWEAVE_CONCURRENCY": "many"})},
		"bad bool":              {Getenv: envMap(map[string]string{"TASKWEAVE_S3_USE_SSL": "maybe"})},
		"zero concurrency":      {Getenv: envMap(map[string]string{"TASKWEAVE_CONCURRENCY": "0"})},
		"unknown backend":       {Getenv: envMap(map[string]string{"TASKWEAVE_STORE": "redis"})},
		"s3 incomplete":         {Getenv: envMap(map[string]string{"TASKWEAVE_STORE": "s3"})},
		"postgres without dsn":  {Getenv: envMap(map[string]string{"TASKWEAVE_STORE": "postgres"})},
		"bad log level":         {Getenv: envMap(map[string]string{"TASKWEAVE_LOG_LEVEL": "loud"})},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if opts.Getenv == nil {
				opts.Getenv = envMap(nil)
			}
			_, err := Load(opts)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate_WrapsErrInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = -1
	cfg.StateDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "state_dir")
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}
	lc := cfg.LoggerConfig(os.Stderr)
	assert.Equal(t, log.LevelWarn, lc.Level)
	assert.Equal(t, log.FormatJSON, lc.Format)
	assert.Same(t, os.Stderr, lc.Output)
}
