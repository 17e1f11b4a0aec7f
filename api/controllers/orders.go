package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tinysprouts/tinysprouts-backend/api/middleware"
	"github.com/tinysprouts/tinysprouts-backend/api/responses"
	ordersvc "github.com/tinysprouts/tinysprouts-backend/internal/orders"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

// OrdersList returns the shopper's order history, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		orders, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"orders": orders})
	}
}

// OrderConfirmation returns the recorded payment confirmation for an order.
func OrderConfirmation(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing order id"))
			return
		}

		confirmation, err := svc.GetConfirmation(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if confirmation.UserID != "" && confirmation.UserID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, confirmation)
	}
}
