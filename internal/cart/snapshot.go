package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	redisclient "github.com/tinysprouts/tinysprouts-backend/pkg/redis"
)

// SnapshotStore persists full cart snapshots keyed by cart id.
type SnapshotStore interface {
	Save(ctx context.Context, cartID string, state State) error
	Load(ctx context.Context, cartID string) (State, bool, error)
	Delete(ctx context.Context, cartID string) error
}

var errSnapshotShape = errors.New("cart snapshot failed shape validation")

// EncodeSnapshot serializes a cart state for storage.
func EncodeSnapshot(state State) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding cart snapshot: %w", err)
	}
	return payload, nil
}

// DecodeSnapshot parses a stored snapshot and shape-validates it: items must
// decode as a sequence. The persisted total is never trusted; callers
// recompute it from the items.
func DecodeSnapshot(data []byte) (State, error) {
	var raw struct {
		Items  json.RawMessage `json:"items"`
		IsOpen bool            `json:"is_open"`
		Total  decimal.Decimal `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("decoding cart snapshot: %w", err)
	}
	if len(raw.Items) == 0 {
		return State{}, errSnapshotShape
	}
	var items []LineItem
	if err := json.Unmarshal(raw.Items, &items); err != nil {
		return State{}, errSnapshotShape
	}
	state := State{Items: items, IsOpen: raw.IsOpen, Total: raw.Total}
	return state.RecomputeTotal(), nil
}

// RedisSnapshotStore keeps cart snapshots in Redis with a rolling TTL.
type RedisSnapshotStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisSnapshotStore builds the Redis-backed snapshot store.
func NewRedisSnapshotStore(client *redisclient.Client, ttl time.Duration) (*RedisSnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("snapshot ttl must be positive")
	}
	return &RedisSnapshotStore{client: client, ttl: ttl}, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, cartID string, state State) error {
	payload, err := EncodeSnapshot(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.client.CartKey(cartID), payload, r.ttl)
}

func (r *RedisSnapshotStore) Load(ctx context.Context, cartID string) (State, bool, error) {
	raw, err := r.client.Get(ctx, r.client.CartKey(cartID))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	state, err := DecodeSnapshot([]byte(raw))
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (r *RedisSnapshotStore) Delete(ctx context.Context, cartID string) error {
	return r.client.Del(ctx, r.client.CartKey(cartID))
}

// MemorySnapshotStore is an in-process snapshot store for tests and for
// running degraded without Redis.
type MemorySnapshotStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemorySnapshotStore builds an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{data: make(map[string][]byte)}
}

func (m *MemorySnapshotStore) Save(ctx context.Context, cartID string, state State) error {
	payload, err := EncodeSnapshot(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cartID] = payload
	return nil
}

func (m *MemorySnapshotStore) Load(ctx context.Context, cartID string) (State, bool, error) {
	m.mu.Lock()
	payload, ok := m.data[cartID]
	m.mu.Unlock()
	if !ok {
		return State{}, false, nil
	}
	state, err := DecodeSnapshot(payload)
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (m *MemorySnapshotStore) Delete(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, cartID)
	return nil
}
