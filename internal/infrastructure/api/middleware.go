package api

import (
	"net/http"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// SessionHeader carries the id of an authenticated session
const SessionHeader = "X-Session-ID"

// sessionMiddleware resolves the tenant from the session named by SessionHeader
func sessionMiddleware(sessions ports.CredentialRepository, logger zerolog.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: SessionHeader + " header is required"})
				return
			}

			session := sessions.LoadSession(r.Context(), id)
			if session == nil || session.Shop == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid session"})
				return
			}
			if session.IsExpired(now()) {
				logger.Debug().Str("sessionId", id).Str("shop", session.Shop).Msg("Expired session rejected")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session expired"})
				return
			}

			ctx := domain.WithSession(r.Context(), session)
			ctx = domain.WithShopDomain(ctx, session.Shop)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger writes one structured line per request
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
