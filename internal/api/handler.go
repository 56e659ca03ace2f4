// Package api serves the chat pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duckmesh/duckchat/internal/chat"
	"github.com/duckmesh/duckchat/internal/config"
	"github.com/duckmesh/duckchat/internal/observability"
	"github.com/duckmesh/duckchat/internal/session"
	"github.com/duckmesh/duckchat/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// TurnRunner answers one question inside a session.
type TurnRunner interface {
	Ask(ctx context.Context, sessionID, question string) (chat.TurnResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          session.Store
	Chat              TurnRunner
	Dataset           *DatasetInfo
	MaxQuestionBytes  int64
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protectedRoutes := map[string]http.HandlerFunc{
		"GET /v1/dataset": func(w http.ResponseWriter, r *http.Request) {
			handleDataset(deps, w, r)
		},
		"POST /v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			handleCreateSession(deps, w, r)
		},
		"GET /v1/sessions/{session}": func(w http.ResponseWriter, r *http.Request) {
			handleGetSession(deps, w, r)
		},
		"DELETE /v1/sessions/{session}": func(w http.ResponseWriter, r *http.Request) {
			handleDeleteSession(deps, w, r)
		},
		"POST /v1/sessions/{session}/turns": func(w http.ResponseWriter, r *http.Request) {
			handleAsk(deps, w, r)
		},
	}

	wrap := func(next http.Handler) http.Handler { return next }
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			wrap = func(http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
				})
			}
		} else {
			wrap = deps.AuthMiddleware
		}
	}
	for pattern, handler := range protectedRoutes {
		mux.Handle(pattern, wrap(handler))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckSessionStore(store session.Store) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return errors.New("session store is not configured")
		}
		return store.HealthCheck(ctx)
	}
}

// CheckSnapshot verifies the dataset snapshot is still readable from the
// object store the sandbox loads it from.
func CheckSnapshot(store storage.ObjectStore, key string) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return errors.New("object store is not configured")
		}
		if _, err := store.Stat(ctx, key); err != nil {
			return errors.New("dataset snapshot is not available: " + err.Error())
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
