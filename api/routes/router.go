package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodsearch/storefront/api/controllers"
	"github.com/foodsearch/storefront/api/middleware"
	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/catalog"
	"github.com/foodsearch/storefront/internal/checkout"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/internal/session"
	"github.com/foodsearch/storefront/pkg/logger"
	"github.com/foodsearch/storefront/pkg/metrics"
)

type storePinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	logg *logger.Logger,
	store storePinger,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	sessionManager *session.Manager,
	cartStore *cart.Store,
	catalogClient *catalog.Client,
	orderClient *orders.Client,
	checkoutMachine *checkout.Machine,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(store, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/login", controllers.SessionLogin(sessionManager, logg))
			r.Post("/logout", controllers.SessionLogout(sessionManager))
			r.Post("/refresh", controllers.SessionRefresh(sessionManager, logg))
			r.Get("/", controllers.SessionCurrent(sessionManager))
		})

		r.Route("/produtos", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(catalogClient, logg))
			r.Get("/{productID}", controllers.ProductsGet(catalogClient, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(sessionManager, logg), middleware.RequireStaff(logg))
				r.Post("/", controllers.ProductsCreate(catalogClient, sessionManager, logg))
				r.Put("/{productID}", controllers.ProductsUpdate(catalogClient, sessionManager, logg))
				r.Delete("/{productID}", controllers.ProductsDelete(catalogClient, sessionManager, logg))
			})
		})

		r.Get("/categorias", controllers.CategoriesList(catalogClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartStore))
			r.Post("/items", controllers.CartAddItem(cartStore, catalogClient, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(cartStore, logg))
			r.Delete("/", controllers.CartClear(cartStore, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutState(checkoutMachine))
			r.Post("/review", controllers.CheckoutBeginReview(checkoutMachine, logg))
			r.Post("/details", controllers.CheckoutBeginDetails(checkoutMachine, logg))
			r.Put("/details", controllers.CheckoutSetDetails(checkoutMachine, logg))
			r.Post("/reset", controllers.CheckoutReset(checkoutMachine))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(sessionManager, logg))
				r.Post("/submit", controllers.CheckoutSubmit(checkoutMachine, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessionManager, logg))
			r.Get("/pedidos", controllers.OrdersList(orderClient, sessionManager, logg))
		})
	})

	return r
}
