// Package store holds the storage-agnostic pieces of the content store: the
// article listing query description and the table layout both drivers share.
package store

import (
	"errors"
	"strings"
)

// PublicScheme is the stream-wrapper prefix of publicly served files.
const PublicScheme = "public://"

// ErrInvalidQuery is returned when an ArticleQuery is missing required fields.
var ErrInvalidQuery = errors.New("invalid article query")

// ArticleQuery describes the article listing join: content rows of ContentType
// joined to their image field and the referenced managed file. Image URIs that
// start with SchemePrefix have that prefix swapped for BasePath.
type ArticleQuery struct {
	ContentType  string
	SchemePrefix string
	BasePath     string
}

// Validate reports whether the query can be executed.
func (q ArticleQuery) Validate() error {
	if strings.TrimSpace(q.ContentType) == "" {
		return errors.Join(ErrInvalidQuery, errors.New("content type is required"))
	}
	if q.SchemePrefix == "" {
		return errors.Join(ErrInvalidQuery, errors.New("scheme prefix is required"))
	}
	return nil
}

// RewriteURI applies the same prefix substitution the drivers perform in SQL.
func (q ArticleQuery) RewriteURI(uri string) string {
	if q.SchemePrefix != "" && strings.HasPrefix(uri, q.SchemePrefix) {
		return q.BasePath + strings.TrimPrefix(uri, q.SchemePrefix)
	}
	return uri
}

// Schema creates the three tables read by the article listing. The column
// types are accepted by both PostgreSQL and SQLite.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS node_field_data (
		nid      BIGINT       NOT NULL PRIMARY KEY,
		type     VARCHAR(32)  NOT NULL,
		langcode VARCHAR(12)  NOT NULL DEFAULT 'en',
		title    VARCHAR(255) NOT NULL,
		status   SMALLINT     NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS node_field_data_type ON node_field_data (type)`,
	`CREATE TABLE IF NOT EXISTS file_managed (
		fid      BIGINT       NOT NULL PRIMARY KEY,
		uri      VARCHAR(255) NOT NULL,
		filename VARCHAR(255) NOT NULL DEFAULT '',
		filemime VARCHAR(255) NOT NULL DEFAULT '',
		filesize BIGINT       NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS node__field_image (
		entity_id             BIGINT NOT NULL,
		delta                 INTEGER NOT NULL,
		field_image_target_id BIGINT NOT NULL,
		PRIMARY KEY (entity_id, delta)
	)`,
	`CREATE INDEX IF NOT EXISTS node__field_image_target ON node__field_image (field_image_target_id)`,
}
