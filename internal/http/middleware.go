package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/shopcart/internal/account"
	"github.com/fjod/shopcart/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type userKey struct{}

// UserFromContext returns the user authenticated by Auth.
func UserFromContext(ctx context.Context) (*account.User, bool) {
	user, ok := ctx.Value(userKey{}).(*account.User)
	return user, ok
}

func withUser(ctx context.Context, user *account.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// RequestLogger puts a request scoped logger and request id into the context
// and logs every completed request.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			log := base.With().
				Str(logger.KeyRequestID, requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = log.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Info().
				Ctx(ctx).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

type tokenClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Auth authenticates the bearer token and loads its user. Only HS256 tokens
// signed with secret are accepted.
func Auth(secret []byte, users account.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondError(w, r, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			log := zerolog.Ctx(r.Context())

			var claims tokenClaims
			_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims,
				func(*jwt.Token) (interface{}, error) {
					return secret, nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			)
			if err != nil || claims.ID == "" {
				log.Debug().Ctx(r.Context()).Err(err).Msg("rejected token")
				respondError(w, r, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}

			user, err := users.FindByID(r.Context(), claims.ID)
			if errors.Is(err, account.ErrUserNotFound) {
				respondError(w, r, http.StatusUnauthorized, "User not found")
				return
			}
			if err != nil {
				log.Error().Ctx(r.Context()).Err(err).Str(logger.KeyUserID, claims.ID).Msg("failed loading user")
				respondError(w, r, http.StatusInternalServerError, "Server error")
				return
			}

			ctx := withUser(r.Context(), user)
			ctx = log.With().Str(logger.KeyUserID, user.ID).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			respondError(w, r, http.StatusForbidden, "Not authorized as admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}
