package middleware

import (
	"net/http"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/internal/session"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

// RequireSession rejects requests while the shopper is logged out and
// stamps the context with the current identity otherwise.
func RequireSession(manager *session.Manager, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := manager.CurrentUser()
			if user == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
				return
			}

			ctx := WithUsername(r.Context(), user.Username)
			ctx = WithIsStaff(ctx, user.IsStaff)
			if logg != nil {
				ctx = logg.WithUsername(ctx, user.Username)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff allows only staff sessions through. Must run inside
// RequireSession.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsStaffFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
