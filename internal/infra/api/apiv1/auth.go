package apiv1

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/logging"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// AuthManager mints and verifies HS256 bearer tokens whose subject is the user id.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *AuthManager) Configured() bool { return len(a.secret) > 0 }

func (a *AuthManager) Mint(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseFromRequest reads "Authorization: Bearer <jwt>" and returns the user id.
func (a *AuthManager) ParseFromRequest(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return "", errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

type userKey struct{}

// UserID returns the authenticated caller, or "" outside Authenticate.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userKey{}).(string)
	return v
}

// Authenticate rejects requests without a valid bearer token.
func (a *AuthManager) Authenticate(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Configured() {
				logging.With(r.Context(), logger).Error().Msg("jwt secret is not configured")
				WriteError(w, http.StatusInternalServerError, "Auth not configured")
				return
			}
			userID, err := a.ParseFromRequest(r)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), userKey{}, userID)
			ctx = logging.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Limiter is satisfied by the redis fixed-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit caps calls per authenticated user. Limiter failures let the request through.
func RateLimit(l Limiter, key func(userID string) string, limit int, window time.Duration, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if l == nil || userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := l.Allow(r.Context(), key(userID), limit, window)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				WriteError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
