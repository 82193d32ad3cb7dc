package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	gerrs "github.com/lmcintyre/gather/internal/errors"
	"github.com/lmcintyre/gather/internal/gather"
	"github.com/lmcintyre/gather/internal/metrics"
	"github.com/lmcintyre/gather/internal/upstream"
	"github.com/lmcintyre/gather/logger"
)

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "request received", "method", r.Method, "path", r.URL.Path)
		start := time.Now()

		writer := &respCodeWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(writer, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(writer.code)).Inc()

		slog.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"url", r.URL.String(),
			"duration", time.Since(start),
			"status_code", writer.code,
		)
	})
}

// To trap the response status code for logging later.
type respCodeWriter struct {
	http.ResponseWriter
	code int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware tags the request context so every log line for one
// request can be tied together.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := logger.Ctx(r.Context(), slog.String("request_id", id))
		w.Header().Set("X-Request-Id", id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const callerKey ctxKey = "caller"

// callerID returns the authenticated user on the request, if any.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey).(string)
	return id
}

// requireAuthMiddleware resolves the bearer token through the identity
// collaborator and attaches the caller to the context. The feed itself never
// looks inside a token.
func requireAuthMiddleware(identity gather.Identity) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, gerrs.E("missing bearer token", http.StatusUnauthorized))
				return
			}

			userID, err := identity.Resolve(r.Context(), token)
			if errors.Is(err, upstream.ErrUnauthorized) {
				writeError(w, gerrs.E("invalid token", http.StatusUnauthorized))
				return
			}
			if err != nil {
				writeError(w, gerrs.E("identity service unavailable", http.StatusServiceUnavailable))
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, userID)
			ctx = logger.Ctx(ctx, slog.String("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}
