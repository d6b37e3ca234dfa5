package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/demo-rest/internal/config"
	"github.com/DeafMist/demo-rest/internal/models"
	"github.com/DeafMist/demo-rest/internal/store"
	"github.com/DeafMist/demo-rest/internal/store/postgres"
	"github.com/DeafMist/demo-rest/internal/store/sqlite"
)

// Store is the full content store contract both drivers satisfy.
type Store interface {
	FetchArticles(ctx context.Context, q store.ArticleQuery) ([]models.ArticleRecord, error)
	SaveContent(ctx context.Context, item models.ContentItem) error
	DeleteContent(ctx context.Context, nid int64) error
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Common, log *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.PostgresMaxConns}, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
