package controllers

import (
	"net/http"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/internal/session"
	"github.com/foodsearch/storefront/pkg/logger"
)

// OrdersList serves the shopper's order history.
func OrdersList(client *orders.Client, manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := client.List(r.Context(), manager.AccessToken())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}
