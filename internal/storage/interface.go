package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gcli-nexus-go/internal/config"
	"gcli-nexus-go/internal/credential"
)

// Repository is the persistence surface the credential pool drives. It is
// intentionally small: the pool is the only writer.
type Repository interface {
	// LoadActive returns every stored credential row ordered by id.
	// Rows with status=false are included so the pool can keep them as
	// tombstones, but they are never eligible for assignment.
	LoadActive(ctx context.Context) ([]credential.Record, error)
	// Upsert inserts rec or, when a row with the same refresh token
	// exists, updates its non-key fields. rec.ID is filled in on insert.
	Upsert(ctx context.Context, rec *credential.Record) error
	// UpdateStatus flips the persisted active flag for a row.
	UpdateStatus(ctx context.Context, id int64, status bool) error
	Close() error
}

const defaultStorageTimeout = 5 * time.Second

func withStorageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultStorageTimeout)
}

// Open constructs the repository selected by cfg and runs any schema
// setup it needs.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "postgres":
		return OpenPostgres(ctx, cfg.Storage.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
