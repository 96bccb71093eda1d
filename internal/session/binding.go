package session

import (
	"context"

	"github.com/foodsearch/storefront/pkg/logger"
)

type cartClearer interface {
	Clear(ctx context.Context) error
}

type checkoutResetter interface {
	Reset(ctx context.Context)
}

// Bind ties the session lifecycle to the session-bound stores: when the
// session ends for any reason, the cart is emptied and the checkout flow is
// returned to browsing.
func Bind(manager *Manager, shopperCart cartClearer, checkout checkoutResetter, logg *logger.Logger) {
	manager.Subscribe(func(reason EndReason) {
		ctx := context.Background()
		checkout.Reset(ctx)
		if err := shopperCart.Clear(ctx); err != nil && logg != nil {
			logg.Error(ctx, "session.cart_clear_failed", err)
		}
	})
}
