package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
)

type upstreamOrders interface {
	ListOrders(ctx context.Context, userID string) ([]catalog.Order, error)
}

type confirmationLoader interface {
	Get(ctx context.Context, orderID string) (*Confirmation, error)
}

// Service exposes order history and payment confirmations.
type Service interface {
	ListForUser(ctx context.Context, userID string) ([]catalog.Order, error)
	GetConfirmation(ctx context.Context, orderID string) (*Confirmation, error)
}

type service struct {
	upstream      upstreamOrders
	confirmations confirmationLoader
}

// NewService builds the orders service.
func NewService(upstream upstreamOrders, confirmations confirmationLoader) (Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream order source required")
	}
	if confirmations == nil {
		return nil, fmt.Errorf("confirmation store required")
	}
	return &service{upstream: upstream, confirmations: confirmations}, nil
}

// ListForUser fetches the user's orders, newest first.
func (s *service) ListForUser(ctx context.Context, userID string) ([]catalog.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	orders, err := s.upstream.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// GetConfirmation returns the recorded payment confirmation for an order.
func (s *service) GetConfirmation(ctx context.Context, orderID string) (*Confirmation, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.confirmations.Get(ctx, orderID)
}
