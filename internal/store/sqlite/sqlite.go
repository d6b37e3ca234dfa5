package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DeafMist/demo-rest/internal/logger"
	"github.com/DeafMist/demo-rest/internal/models"
	"github.com/DeafMist/demo-rest/internal/store"
)

// Store keeps the content tables in a SQLite file. Used for local development
// and for exercising the listing join against a real SQL engine in tests.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

const listArticlesSQL = `
	SELECT
		nfd.title,
		CASE
			WHEN substr(f.uri, 1, length(?2)) = ?2 THEN ?3 || substr(f.uri, length(?2) + 1)
			ELSE f.uri
		END AS image
	FROM node_field_data nfd
	INNER JOIN node__field_image n_fi ON n_fi.entity_id = nfd.nid
	INNER JOIN file_managed f ON f.fid = n_fi.field_image_target_id
	WHERE nfd.type = ?1
`

const (
	upsertFileSQL = `
	INSERT INTO file_managed (fid, uri, filename, filemime, filesize)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (fid) DO UPDATE SET
		uri = excluded.uri,
		filename = excluded.filename,
		filemime = excluded.filemime,
		filesize = excluded.filesize
`
	upsertNodeSQL = `
	INSERT INTO node_field_data (nid, type, langcode, title, status)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (nid) DO UPDATE SET
		type = excluded.type,
		langcode = excluded.langcode,
		title = excluded.title,
		status = excluded.status
`
	deleteImagesSQL = `DELETE FROM node__field_image WHERE entity_id = ?`
	insertImageSQL  = `INSERT INTO node__field_image (entity_id, delta, field_image_target_id) VALUES (?, ?, ?)`
	deleteNodeSQL   = `DELETE FROM node_field_data WHERE nid = ?`
)

// Open opens (creating when needed) the SQLite database at path and ensures
// the schema exists. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if log == nil {
		log = logger.Discard()
	}

	s := &Store{db: db, log: log}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the content tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range store.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// FetchArticles runs the article listing join.
func (s *Store) FetchArticles(ctx context.Context, q store.ArticleQuery) ([]models.ArticleRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, listArticlesSQL, q.ContentType, q.SchemePrefix, q.BasePath)
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, f := range item.Images {
			if _, err := tx.ExecContext(ctx, upsertFileSQL, f.FID, f.URI, f.Filename, f.Filemime, f.Filesize); err != nil {
				return fmt.Errorf("upsert file %d: %w", f.FID, err)
			}
		}

		status := 0
		if item.Status {
			status = 1
		}
		if _, err := tx.ExecContext(ctx, upsertNodeSQL, item.NID, item.Type, item.Langcode, item.Title, status); err != nil {
			return fmt.Errorf("upsert node %d: %w", item.NID, err)
		}

		if _, err := tx.ExecContext(ctx, deleteImagesSQL, item.NID); err != nil {
			return fmt.Errorf("clear images of node %d: %w", item.NID, err)
		}
		for delta, f := range item.Images {
			if _, err := tx.ExecContext(ctx, insertImageSQL, item.NID, delta, f.FID); err != nil {
				return fmt.Errorf("attach file %d to node %d: %w", f.FID, item.NID, err)
			}
		}
		return nil
	})
}

// DeleteContent removes a node and its image field rows.
func (s *Store) DeleteContent(ctx context.Context, nid int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteImagesSQL, nid); err != nil {
			return fmt.Errorf("clear images of node %d: %w", nid, err)
		}
		if _, err := tx.ExecContext(ctx, deleteNodeSQL, nid); err != nil {
			return fmt.Errorf("delete node %d: %w", nid, err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", slog.Any("err", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
