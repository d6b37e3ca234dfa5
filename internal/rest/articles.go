package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DeafMist/demo-rest/internal/access"
	"github.com/DeafMist/demo-rest/internal/logger"
	"github.com/DeafMist/demo-rest/internal/metrics"
	"github.com/DeafMist/demo-rest/internal/models"
	"github.com/DeafMist/demo-rest/internal/store"
)

const (
	articleContentType = "article"

	msgAccessDenied      = "The 'access content' permission is required."
	msgCouldNotFind      = "Could not find articles"
	msgUnsupportedFormat = "Not acceptable format: %s"
	formatQueryParam     = "_format"
	supportedFormat      = "json"
)

// ArticleMaxAge is the cache lifetime of a successful listing: one day added
// to the zero epoch, which is 86400 seconds.
var ArticleMaxAge = func() time.Duration {
	epoch := time.Unix(0, 0).UTC()
	return epoch.AddDate(0, 0, 1).Sub(epoch)
}()

// AccessChecker answers whether the caller in ctx holds a permission.
type AccessChecker interface {
	HasPermission(ctx context.Context, permission string) bool
}

// ArticleStore runs the article listing join.
type ArticleStore interface {
	FetchArticles(ctx context.Context, q store.ArticleQuery) ([]models.ArticleRecord, error)
}

// PathResolver supplies the public base path of managed files.
type PathResolver interface {
	PublicBasePath() string
}

// ArticleListEndpoint serves the list of article titles with their image URL.
type ArticleListEndpoint struct {
	access       AccessChecker
	store        ArticleStore
	paths        PathResolver
	log          *slog.Logger
	metrics      *metrics.Metrics
	queryTimeout time.Duration
}

// Option customizes an ArticleListEndpoint.
type Option func(*ArticleListEndpoint)

// WithLogger sets the logger used for store failures.
func WithLogger(log *slog.Logger) Option {
	return func(e *ArticleListEndpoint) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics records request outcomes and query durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *ArticleListEndpoint) { e.metrics = m }
}

// WithQueryTimeout bounds the store query. Zero leaves it unbounded.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *ArticleListEndpoint) { e.queryTimeout = d }
}

// NewArticleListEndpoint wires the endpoint to its collaborators.
func NewArticleListEndpoint(checker AccessChecker, articles ArticleStore, paths PathResolver, opts ...Option) *ArticleListEndpoint {
	e := &ArticleListEndpoint{
		access: checker,
		store:  articles,
		paths:  paths,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// List checks the caller may read content and returns every article that has an image.
func (e *ArticleListEndpoint) List(ctx context.Context) (*models.ArticleListResponse, error) {
	if !e.access.HasPermission(ctx, access.AccessContent) {
		e.metrics.ListRequest(metrics.OutcomeDenied)
		return nil, AccessDenied(msgAccessDenied)
	}

	q := store.ArticleQuery{
		ContentType:  articleContentType,
		SchemePrefix: store.PublicScheme,
		BasePath:     e.paths.PublicBasePath(),
	}

	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	articles, err := e.store.FetchArticles(ctx, q)
	e.metrics.ObserveListQuery(time.Since(start))
	if err != nil {
		e.log.ErrorContext(ctx, "fetch articles", slog.Any("err", err))
		e.metrics.ListRequest(metrics.OutcomeStoreError)
		return nil, BadRequest(msgCouldNotFind, err)
	}

	if articles == nil {
		articles = []models.ArticleRecord{}
	}

	e.metrics.ListRequest(metrics.OutcomeOK)
	return &models.ArticleListResponse{Articles: articles, MaxAge: ArticleMaxAge}, nil
}

func (e *ArticleListEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if format := r.URL.Query().Get(formatQueryParam); format != "" && format != supportedFormat {
		writeJSON(w, http.StatusNotAcceptable, errorResponse{Message: fmt.Sprintf(msgUnsupportedFormat, format)})
		return
	}

	resp, err := e.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(resp.MaxAge/time.Second)))
	writeJSON(w, http.StatusOK, resp)
}
