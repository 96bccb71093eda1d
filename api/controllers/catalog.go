package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/api/validators"
	"github.com/foodsearch/storefront/internal/catalog"
	"github.com/foodsearch/storefront/internal/session"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

// ProductsList serves the public catalog, forwarding the nome and categoria
// query params as backend filters.
func ProductsList(client *catalog.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := catalog.Filter{
			Nome:      r.URL.Query().Get("nome"),
			Categoria: r.URL.Query().Get("categoria"),
		}
		products, err := client.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductsGet serves a single product.
func ProductsGet(client *catalog.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := client.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// CategoriesList serves the category list.
func CategoriesList(client *catalog.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := client.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

// ProductsCreate adds a product to the catalog on behalf of a staff session.
func ProductsCreate(client *catalog.Client, manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var product catalog.Product
		if err := validators.DecodeJSONBody(r, &product); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := client.Create(r.Context(), product, manager.AccessToken())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductsUpdate replaces a product on behalf of a staff session.
func ProductsUpdate(client *catalog.Client, manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var product catalog.Product
		if err := validators.DecodeJSONBody(r, &product); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product.ID = id

		updated, err := client.Update(r.Context(), product, manager.AccessToken())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// ProductsDelete removes a product on behalf of a staff session.
func ProductsDelete(client *catalog.Client, manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := client.Delete(r.Context(), id, manager.AccessToken()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": id})
	}
}

func parseProductID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
