package cli

import (
	"context"
	"fmt"
	"io"

	"taskweave/internal/config"
	"taskweave/internal/dag"
	"taskweave/internal/store"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the configured completion store. Non-memory backends
// get an LRU in front when cache_size > 0.
func openStore(ctx context.Context, cfg config.StoreConfig) (dag.CompletionStore, io.Closer, error) {
	var (
		s      dag.CompletionStore
		closer io.Closer = nopCloser{}
		err    error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		s, err = store.NewMemory(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return s, closer, nil
	case config.BackendFile:
		s, err = store.NewFile(cfg.Dir)
	case config.BackendS3:
		s, err = store.NewS3(store.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
	case config.BackendPostgres:
		var pg *store.Postgres
		pg, err = store.NewPostgres(ctx, cfg.PostgresDSN)
		if err == nil {
			s, closer = pg, pg
		}
	default:
		err = fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	if cfg.CacheSize > 0 {
		cached, err := store.NewCached(s, cfg.CacheSize)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		s = cached
	}
	return s, closer, nil
}
