package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/api/validators"
	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/catalog"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

// productLookup is the slice of the catalog the cart endpoints need.
type productLookup interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

type cartResponse struct {
	Items      []cart.LineItem `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice string          `json:"total_price"`
}

func newCartResponse(store *cart.Store) cartResponse {
	totals := store.Totals()
	return cartResponse{
		Items:      store.Items(),
		TotalItems: totals.TotalItems,
		TotalPrice: totals.TotalPrice.StringFixed(2),
	}
}

// CartGet returns the current cart contents and totals.
func CartGet(store *cart.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

type addItemRequest struct {
	ProductID int64 `json:"produto_id" validate:"required"`
	Quantity  int   `json:"quantidade" validate:"required,min=1"`
}

// CartAddItem looks the product up in the catalog and merges it into the
// cart, so a line always carries the name and price as seen at add time.
func CartAddItem(store *cart.Store, products productLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.Get(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.AddItem(r.Context(), product.Snapshot(), payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartRemoveItem drops a line from the cart.
func CartRemoveItem(store *cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		if err := store.RemoveItem(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartClear empties the cart.
func CartClear(store *cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}
