package rest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/demo-rest/internal/access"
	"github.com/DeafMist/demo-rest/internal/files"
	"github.com/DeafMist/demo-rest/internal/metrics"
	"github.com/DeafMist/demo-rest/internal/models"
	"github.com/DeafMist/demo-rest/internal/rest"
	"github.com/DeafMist/demo-rest/internal/store/sqlite"
)

const routerSecret = "router-secret"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func newTestRouter(t *testing.T, anonymous []string) (http.Handler, *sqlite.Store) {
	t.Helper()

	st, err := sqlite.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	endpoint := rest.NewArticleListEndpoint(
		access.NewChecker(anonymous),
		st,
		files.NewPublicStream("/sites/default/files"),
		rest.WithMetrics(metrics.New(reg)),
	)

	router := rest.NewRouter(rest.RouterConfig{
		Articles:       endpoint,
		Health:         st,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Authenticate:   access.NewAuthenticator(routerSecret, "", nil).Middleware,
		AllowedOrigins: []string{"https://app.example"},
	})
	return router, st
}

func seed(t *testing.T, st *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SaveContent(ctx, models.ContentItem{
		NID: 1, Type: "article", Langcode: "en", Title: "Hello", Status: true,
		Images: []models.FileRef{{FID: 1, URI: "public://images/a.png"}},
	}))
	require.NoError(t, st.SaveContent(ctx, models.ContentItem{
		NID: 2, Type: "page", Langcode: "en", Title: "About", Status: true,
		Images: []models.FileRef{{FID: 2, URI: "public://images/b.png"}},
	}))
	require.NoError(t, st.SaveContent(ctx, models.ContentItem{
		NID: 3, Type: "article", Langcode: "en", Title: "No picture", Status: true,
	}))
}

func TestRouterListsArticles(t *testing.T) {
	router, st := newTestRouter(t, []string{access.AccessContent})
	seed(t, st)

	for _, target := range []string{"/rest/articles", "/rest/articles/anything"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusOK, rec.Code, target)
		require.JSONEq(t, `{"articles":[{"title":"Hello","image":"/sites/default/files/images/a.png"}]}`, rec.Body.String())
		require.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	}
}

func TestRouterAnonymousDenied(t *testing.T) {
	router, st := newTestRouter(t, nil)
	seed(t, st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rest/articles", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterBearerTokenGrantsAccess(t *testing.T) {
	router, st := newTestRouter(t, nil)
	seed(t, st)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, access.Claims{
		Permissions: []string{access.AccessContent},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(routerSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/rest/articles", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRejectsOtherMethods(t *testing.T) {
	router, _ := newTestRouter(t, []string{access.AccessContent})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rest/articles", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := rest.NewRouter(rest.RouterConfig{Articles: http.NotFoundHandler(), Health: failingPinger{}})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "database is locked")
}

func TestRouterMetrics(t *testing.T) {
	router, _ := newTestRouter(t, []string{access.AccessContent})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rest/articles", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `articles_list_requests_total{outcome="ok"} 1`)
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/rest/articles", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
