// Package api provides the public HTTP surface of the feed service.
//
// It authenticates callers against the identity collaborator, hands feed
// requests to the coordinator and maps the error taxonomy onto status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	gerrs "github.com/lmcintyre/gather/internal/errors"
	"github.com/lmcintyre/gather/internal/gather"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}
	writeError(w, err)
}

// writeError coerces err into a structured error and writes it as JSON.
func writeError(w http.ResponseWriter, err error) {
	sErr := &gerrs.Error{}
	if !errors.As(err, &sErr) {
		slog.Error("unstructured error from handler", "error", err)
		sErr = gerrs.E(http.StatusInternalServerError, "internal server error")
	}

	if err := writeJSON(w, sErr.Status, sErr); err != nil {
		slog.Error("error writing response", "error", err)
	}
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
}

func (r errRouter) HandleFuncE(path string, f HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}

type (
	// Server serves the feed API.
	Server struct {
		*http.Server

		feed     gather.Feed
		identity gather.Identity
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string

		// AuthDisabled skips the identity lookup. For local testing.
		AuthDisabled bool
	}
)

func NewServer(lc fx.Lifecycle, config ServerConfig, feed gather.Feed, identity gather.Identity) *Server {
	r := errRouter{Router: mux.NewRouter()}

	srvr := &Server{
		feed:     feed,
		identity: identity,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 5 * time.Second,
			// Write timeout sits above the page deadline so slow pages
			// degrade through the coordinator, not the socket.
			WriteTimeout: 15 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type", "authorization"}),
			)(r),
		},
	}

	r.Use(requestIDMiddleware, accessLogMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFuncE("/healthz", srvr.getHealth).Methods(http.MethodGet)

	authed := errRouter{Router: r.NewRoute().Subrouter()}
	if !config.AuthDisabled {
		authed.Use(requireAuthMiddleware(identity))
	}
	authed.HandleFuncE("/api/feed/{userID}", srvr.getFeed).Methods(http.MethodGet)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("error listening", "error", err)
				}
			}()

			slog.Debug("configured feed server", "port", config.Port)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srvr.Shutdown(ctx)
		},
	})

	return srvr
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
