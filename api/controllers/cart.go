package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tinysprouts/tinysprouts-backend/api/middleware"
	"github.com/tinysprouts/tinysprouts-backend/api/responses"
	"github.com/tinysprouts/tinysprouts-backend/api/validators"
	cartsvc "github.com/tinysprouts/tinysprouts-backend/internal/cart"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

// The cart is keyed by the signed-in shopper, so every handler resolves the
// cart id from the authenticated context.
func cartID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

type addItemRequest struct {
	ProductID     string  `json:"product_id" validate:"required"`
	VariantID     *string `json:"variant_id"`
	SelectedColor *string `json:"selected_color"`
	UnitPrice     string  `json:"unit_price" validate:"required"`
	SalePrice     *string `json:"sale_price"`
	Name          string  `json:"name" validate:"required"`
	Emoji         string  `json:"emoji"`
	Category      string  `json:"category"`
}

func (req addItemRequest) toItem() (cartsvc.LineItem, error) {
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return cartsvc.LineItem{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price")
	}

	var salePrice *decimal.Decimal
	if req.SalePrice != nil {
		parsed, err := decimal.NewFromString(*req.SalePrice)
		if err != nil {
			return cartsvc.LineItem{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale price")
		}
		salePrice = &parsed
	}

	return cartsvc.LineItem{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		SelectedColor: req.SelectedColor,
		UnitPrice:     unitPrice,
		SalePrice:     salePrice,
		Quantity:      1,
		Name:          req.Name,
		Emoji:         req.Emoji,
		Category:      req.Category,
	}, nil
}

type selectorRequest struct {
	ProductID     string  `json:"product_id" validate:"required"`
	VariantID     *string `json:"variant_id"`
	SelectedColor *string `json:"selected_color"`
}

func (req selectorRequest) toSelector() cartsvc.Selector {
	return cartsvc.Selector{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		SelectedColor: req.SelectedColor,
	}
}

type updateQuantityRequest struct {
	selectorRequest
	Quantity int `json:"quantity"`
}

// CartGet returns the shopper's current cart.
func CartGet(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		state := store.Load(r.Context(), cartID(r))
		responses.WriteSuccess(w, state)
	}
}

// CartAddItem merges a product into the cart, bumping quantity when an
// identical line already exists.
func CartAddItem(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := payload.toItem()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state := store.Dispatch(r.Context(), cartID(r), cartsvc.AddItem{Item: item})
		responses.WriteSuccess(w, state)
	}
}

// CartRemoveItem drops every line the selector matches.
func CartRemoveItem(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload selectorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state := store.Dispatch(r.Context(), cartID(r), cartsvc.RemoveItem{Selector: payload.toSelector()})
		responses.WriteSuccess(w, state)
	}
}

// CartUpdateQuantity sets the quantity on every matched line; zero removes.
func CartUpdateQuantity(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmd := cartsvc.UpdateQuantity{Selector: payload.toSelector(), Quantity: payload.Quantity}
		state := store.Dispatch(r.Context(), cartID(r), cmd)
		responses.WriteSuccess(w, state)
	}
}

// CartClear empties the cart without touching the panel visibility.
func CartClear(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		state := store.Clear(r.Context(), cartID(r))
		responses.WriteSuccess(w, state)
	}
}

// CartToggle flips the cart panel open or closed.
func CartToggle(store *cartsvc.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		state := store.Dispatch(r.Context(), cartID(r), cartsvc.Toggle{})
		responses.WriteSuccess(w, state)
	}
}
