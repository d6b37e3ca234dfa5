package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeafMist/demo-rest/internal/logger"
	"github.com/DeafMist/demo-rest/internal/models"
	"github.com/DeafMist/demo-rest/internal/store"
)

// Pool is the subset of *pgxpool.Pool the store relies on.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Config holds the connection settings for Postgres.
type Config struct {
	DSN      string
	MaxConns int
}

// Store reads and writes content tables in Postgres.
type Store struct {
	pool Pool
	log  *slog.Logger
}

const listArticlesSQL = `
	SELECT
		nfd.title,
		CASE
			WHEN left(f.uri, length($2::text)) = $2::text
				THEN $3::text || substr(f.uri, length($2::text) + 1)
			ELSE f.uri
		END AS image
	FROM node_field_data nfd
	INNER JOIN node__field_image n_fi ON n_fi.entity_id = nfd.nid
	INNER JOIN file_managed f ON f.fid = n_fi.field_image_target_id
	WHERE nfd.type = $1
`

const (
	upsertFileSQL = `
	INSERT INTO file_managed (fid, uri, filename, filemime, filesize)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (fid) DO UPDATE SET
		uri = EXCLUDED.uri,
		filename = EXCLUDED.filename,
		filemime = EXCLUDED.filemime,
		filesize = EXCLUDED.filesize
`
	upsertNodeSQL = `
	INSERT INTO node_field_data (nid, type, langcode, title, status)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (nid) DO UPDATE SET
		type = EXCLUDED.type,
		langcode = EXCLUDED.langcode,
		title = EXCLUDED.title,
		status = EXCLUDED.status
`
	deleteImagesSQL = `DELETE FROM node__field_image WHERE entity_id = $1`
	insertImageSQL  = `
	INSERT INTO node__field_image (entity_id, delta, field_image_target_id)
	VALUES ($1, $2, $3)
`
	deleteNodeSQL = `DELETE FROM node_field_data WHERE nid = $1`
)

// Open connects a pgx pool and verifies it with a ping.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(pool, log), nil
}

// New wraps an existing pool.
func New(pool Pool, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{pool: pool, log: log}
}

// EnsureSchema creates the content tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range store.Schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// FetchArticles runs the article listing join. Row order is whatever Postgres returns.
func (s *Store) FetchArticles(ctx context.Context, q store.ArticleQuery) ([]models.ArticleRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listArticlesSQL, q.ContentType, q.SchemePrefix, q.BasePath)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.ArticleRecord, 0)
	for rows.Next() {
		var a models.ArticleRecord
		if err := rows.Scan(&a.Title, &a.Image); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	s.log.Debug("fetched articles", slog.String("type", q.ContentType), slog.Int("count", len(articles)))
	return articles, nil
}

// SaveContent upserts the node, its image files and the image field rows in one transaction.
func (s *Store) SaveContent(ctx context.Context, item models.ContentItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := saveContent(ctx, tx, item); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.Warn("rollback failed", slog.Any("err", rbErr), slog.Int64("nid", item.NID))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit content %d: %w", item.NID, err)
	}
	return nil
}

func saveContent(ctx context.Context, tx pgx.Tx, item models.ContentItem) error {
	for _, f := range item.Images {
		if _, err := tx.Exec(ctx, upsertFileSQL, f.FID, f.URI, f.Filename, f.Filemime, f.Filesize); err != nil {
			return fmt.Errorf("upsert file %d: %w", f.FID, err)
		}
	}

	if _, err := tx.Exec(ctx, upsertNodeSQL, item.NID, item.Type, item.Langcode, item.Title, statusValue(item.Status)); err != nil {
		return fmt.Errorf("upsert node %d: %w", item.NID, err)
	}

	if _, err := tx.Exec(ctx, deleteImagesSQL, item.NID); err != nil {
		return fmt.Errorf("clear images of node %d: %w", item.NID, err)
	}

	for delta, f := range item.Images {
		if _, err := tx.Exec(ctx, insertImageSQL, item.NID, delta, f.FID); err != nil {
			return fmt.Errorf("attach file %d to node %d: %w", f.FID, item.NID, err)
		}
	}
	return nil
}

// DeleteContent removes a node and its image field rows. Files stay registered.
func (s *Store) DeleteContent(ctx context.Context, nid int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec(ctx, deleteImagesSQL, nid); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("clear images of node %d: %w", nid, err)
	}
	if _, err := tx.Exec(ctx, deleteNodeSQL, nid); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("delete node %d: %w", nid, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete %d: %w", nid, err)
	}
	return nil
}

// Ping checks the pool can reach Postgres.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func statusValue(published bool) int16 {
	if published {
		return 1
	}
	return 0
}
