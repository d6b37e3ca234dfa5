package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DeafMist/demo-rest/internal/logger"
)

var (
	errInvalidToken  = errors.New("invalid token")
	errMissingSecret = errors.New("token secret not configured")
)

// Claims are the JWT claims issued by the CMS for API callers.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator turns an Authorization bearer token into an Account.
// Requests without a token continue as anonymous.
type Authenticator struct {
	secret []byte
	issuer string
	log    *slog.Logger
}

// NewAuthenticator creates an HS256 token authenticator. An empty secret
// rejects every presented token while still letting anonymous requests through.
func NewAuthenticator(secret, issuer string, log *slog.Logger) *Authenticator {
	if log == nil {
		log = logger.Discard()
	}
	if secret == "" {
		log.Warn("AUTH_JWT_SECRET not set, bearer tokens will be rejected")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, log: log}
}

// Middleware attaches the caller's account to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		acct, err := a.Authenticate(raw)
		if err != nil {
			a.log.Debug("rejected bearer token", slog.Any("err", err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acct)))
	})
}

// Authenticate validates a raw token and returns the account it describes.
func (a *Authenticator) Authenticate(raw string) (Account, error) {
	if len(a.secret) == 0 {
		return Account{}, errMissingSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Account{}, errInvalidToken
	}

	return Account{
		ID:          claims.Subject,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
