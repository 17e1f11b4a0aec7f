package controllers

import (
	"context"
	"net/http"

	"github.com/tinysprouts/tinysprouts-backend/api/responses"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TinySprouts-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the session store and the upstream
// catalog both answer.
func HealthReady(cfg *config.Config, store, upstream pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TinySprouts-Env", cfg.App.Env)

		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable"))
				return
			}
		}
		if upstream != nil {
			if err := upstream.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
