package controllers

import (
	"net/http"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/api/validators"
	"github.com/foodsearch/storefront/internal/checkout"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/pkg/enums"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

type checkoutResponse struct {
	State       string        `json:"state"`
	FailReason  string        `json:"fail_reason,omitempty"`
	Details     detailsView   `json:"details"`
	LastOrder   *orders.Order `json:"last_order,omitempty"`
}

type detailsView struct {
	PaymentMethod   string `json:"forma_pagamento,omitempty"`
	CardNumber      string `json:"numero_cartao,omitempty"`
	DeliveryAddress string `json:"endereco_entrega,omitempty"`
}

func newCheckoutResponse(machine *checkout.Machine) checkoutResponse {
	details := machine.Details()
	return checkoutResponse{
		State:      machine.State().String(),
		FailReason: machine.FailReason(),
		Details: detailsView{
			PaymentMethod:   details.PaymentMethod.String(),
			CardNumber:      maskCardNumber(details.CardNumber),
			DeliveryAddress: details.DeliveryAddress,
		},
		LastOrder: machine.LastOrder(),
	}
}

// maskCardNumber hides all but the last four digits.
func maskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

// CheckoutState reports the flow's current position.
func CheckoutState(machine *checkout.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newCheckoutResponse(machine))
	}
}

// CheckoutBeginReview moves the flow from browsing into reviewing.
func CheckoutBeginReview(machine *checkout.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := machine.BeginReview(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutResponse(machine))
	}
}

// CheckoutBeginDetails moves the flow into collecting details.
func CheckoutBeginDetails(machine *checkout.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := machine.BeginDetails(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutResponse(machine))
	}
}

type detailsRequest struct {
	PaymentMethod   *string `json:"forma_pagamento"`
	CardNumber      *string `json:"numero_cartao"`
	DeliveryAddress *string `json:"endereco_entrega"`
}

// CheckoutSetDetails applies any subset of the checkout details.
func CheckoutSetDetails(machine *checkout.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload detailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.PaymentMethod == nil && payload.CardNumber == nil && payload.DeliveryAddress == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no details provided"))
			return
		}

		if payload.PaymentMethod != nil {
			if err := machine.SetPaymentMethod(enums.PaymentMethod(*payload.PaymentMethod)); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if payload.CardNumber != nil {
			if err := machine.SetCardNumber(*payload.CardNumber); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if payload.DeliveryAddress != nil {
			if err := machine.SetDeliveryAddress(*payload.DeliveryAddress); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, newCheckoutResponse(machine))
	}
}

// CheckoutSubmit places the order.
func CheckoutSubmit(machine *checkout.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := machine.Submit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// CheckoutReset abandons the flow and returns to browsing.
func CheckoutReset(machine *checkout.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machine.Reset(r.Context())
		responses.WriteSuccess(w, newCheckoutResponse(machine))
	}
}
