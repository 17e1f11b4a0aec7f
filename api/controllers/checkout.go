package controllers

import (
	"net/http"

	"github.com/tinysprouts/tinysprouts-backend/api/middleware"
	"github.com/tinysprouts/tinysprouts-backend/api/responses"
	"github.com/tinysprouts/tinysprouts-backend/api/validators"
	checkoutsvc "github.com/tinysprouts/tinysprouts-backend/internal/checkout"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

type paymentMethodRequest struct {
	Method string `json:"method" validate:"required"`
}

func checkoutIdentity(r *http.Request) checkoutsvc.Identity {
	userID := middleware.UserIDFromContext(r.Context())
	return checkoutsvc.Identity{CartID: userID, UserID: userID}
}

// CheckoutFlow returns the shopper's current checkout progress.
func CheckoutFlow(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		flow := svc.Flow(r.Context(), cartID(r))
		responses.WriteSuccess(w, flow)
	}
}

// CheckoutShipping validates the shipping form and advances to payment.
func CheckoutShipping(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var form checkoutsvc.ShippingForm
		if err := validators.DecodeJSONBody(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flow, err := svc.SubmitShipping(r.Context(), cartID(r), form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, flow)
	}
}

// CheckoutPayment records the shipping method and advances to review.
func CheckoutPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var body paymentMethodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flow, err := svc.SubmitPayment(r.Context(), cartID(r), body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, flow)
	}
}

// CheckoutBack steps backwards without revalidating the earlier step.
func CheckoutBack(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		flow, err := svc.Back(r.Context(), cartID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, flow)
	}
}

// CheckoutReview quotes the order from the live cart contents.
func CheckoutReview(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		quote, err := svc.Review(r.Context(), cartID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}

// CheckoutPay places the order: cash orders complete immediately, online
// orders open a gateway attempt and return what the payment UI needs.
func CheckoutPay(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		id := checkoutIdentity(r)
		flow := svc.Flow(r.Context(), id.CartID)

		if flow.Method == checkoutsvc.MethodCOD {
			confirmation, err := svc.PlaceCOD(r.Context(), id)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]any{"payment": "cod", "confirmation": confirmation})
			return
		}

		result, err := svc.Begin(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"payment": "online", "order": result})
	}
}

// CheckoutPaymentSuccess verifies the gateway callback and completes the order.
func CheckoutPaymentSuccess(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var params checkoutsvc.SuccessParams
		if err := validators.DecodeJSONBody(r, &params); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmation, err := svc.HandleSuccess(r.Context(), checkoutIdentity(r), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmation)
	}
}

// CheckoutPaymentFailure releases the gateway attempt so the shopper can retry.
func CheckoutPaymentFailure(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var params checkoutsvc.FailureParams
		if err := validators.DecodeJSONBody(r, &params); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flow, err := svc.HandleFailure(r.Context(), cartID(r), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, flow)
	}
}
