package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/foodsearch/storefront/api/responses"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports that the process is up.
func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady reports whether the durable store is reachable.
func HealthReady(store pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteSuccess(w, map[string]string{"status": "ok", "store": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store unreachable"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
