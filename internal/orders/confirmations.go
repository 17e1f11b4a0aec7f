package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	redisclient "github.com/tinysprouts/tinysprouts-backend/pkg/redis"
)

// Confirmation is the record written when a gateway payment succeeds. It
// backs the order-confirmation view after checkout.
type Confirmation struct {
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	UserID      string    `json:"user_id"`
	AmountPaise int64     `json:"amount_paise"`
	Currency    string    `json:"currency"`
	PlacedAt    time.Time `json:"placed_at"`
}

// ConfirmationStore keeps payment confirmations in Redis.
type ConfirmationStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewConfirmationStore builds the Redis-backed confirmation store.
func NewConfirmationStore(client *redisclient.Client, ttl time.Duration) (*ConfirmationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("confirmation ttl must be positive")
	}
	return &ConfirmationStore{client: client, ttl: ttl}, nil
}

// Record stores a confirmation keyed by its order id.
func (s *ConfirmationStore) Record(ctx context.Context, conf Confirmation) error {
	if strings.TrimSpace(conf.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "confirmation order id is required")
	}
	payload, err := json.Marshal(conf)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding confirmation")
	}
	if err := s.client.Set(ctx, s.client.ConfirmationKey(conf.OrderID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing confirmation")
	}
	return nil
}

// Get loads a confirmation; unknown order ids map to CodeNotFound.
func (s *ConfirmationStore) Get(ctx context.Context, orderID string) (*Confirmation, error) {
	raw, err := s.client.Get(ctx, s.client.ConfirmationKey(orderID))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order confirmation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading confirmation")
	}
	var conf Confirmation
	if err := json.Unmarshal([]byte(raw), &conf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding confirmation")
	}
	return &conf, nil
}
