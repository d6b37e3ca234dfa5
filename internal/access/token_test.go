package access_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/demo-rest/internal/access"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims access.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() access.Claims {
	return access.Claims{
		Roles:       []string{"editor"},
		Permissions: []string{access.AccessContent},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "cms",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	auth := access.NewAuthenticator(testSecret, "cms", nil)

	acct, err := auth.Authenticate(signToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	require.Equal(t, "7", acct.ID)
	require.Equal(t, []string{"editor"}, acct.Roles)
	require.Equal(t, []string{access.AccessContent}, acct.Permissions)
}

func TestAuthenticateRejects(t *testing.T) {
	auth := access.NewAuthenticator(testSecret, "cms", nil)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: signToken(t, "other", validClaims())},
		{name: "expired", token: signToken(t, testSecret, expired)},
		{name: "wrong issuer", token: signToken(t, testSecret, wrongIssuer)},
		{name: "no subject", token: signToken(t, testSecret, noSubject)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(tt.token)
			require.Error(t, err)
		})
	}
}

func TestAuthenticateWithoutSecret(t *testing.T) {
	auth := access.NewAuthenticator("", "", nil)
	_, err := auth.Authenticate(signToken(t, testSecret, validClaims()))
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	auth := access.NewAuthenticator(testSecret, "", nil)

	var seen access.Account
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.AccountFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous without header", func(t *testing.T) {
		seen = access.Account{ID: "stale"}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, seen.IsAnonymous())
	})

	t.Run("valid bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "7", seen.ID)
	})

	t.Run("invalid bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"message":"invalid token"}`, rec.Body.String())
	})
}
