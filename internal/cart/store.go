package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

// Store owns one cart State per cart id. Every mutation runs through the
// reducer and then persists the full snapshot; the in-memory state stays
// authoritative when persistence fails.
type Store struct {
	snapshots SnapshotStore
	logger    *logger.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewStore builds a cart store backed by the provided snapshot store.
func NewStore(snapshots SnapshotStore, logg *logger.Logger) (*Store, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{
		snapshots: snapshots,
		logger:    logg,
		states:    make(map[string]State),
	}, nil
}

// Load returns the current state for the cart, rehydrating from the snapshot
// store on first access. Absent or corrupt snapshots yield an empty cart.
func (s *Store) Load(ctx context.Context, cartID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, cartID)
}

// Dispatch applies the command to the cart and persists the result. Persist
// failures are logged and swallowed.
func (s *Store) Dispatch(ctx context.Context, cartID string, cmd Command) State {
	s.mu.Lock()
	current := s.loadLocked(ctx, cartID)
	next := Apply(current, cmd)
	s.states[cartID] = next
	s.mu.Unlock()

	if err := s.snapshots.Save(ctx, cartID, next); err != nil {
		ctx = s.logger.WithCartID(ctx, cartID)
		s.logger.Error(ctx, "persisting cart snapshot failed", err)
	}
	return next
}

// ItemCount sums quantities across the cart's lines.
func (s *Store) ItemCount(ctx context.Context, cartID string) int {
	return s.Load(ctx, cartID).ItemCount()
}

// Clear empties the cart's items, leaving the visibility flag alone.
func (s *Store) Clear(ctx context.Context, cartID string) State {
	return s.Dispatch(ctx, cartID, Clear{})
}

// Forget drops the in-memory state and the persisted snapshot for a cart.
func (s *Store) Forget(ctx context.Context, cartID string) {
	s.mu.Lock()
	delete(s.states, cartID)
	s.mu.Unlock()

	if err := s.snapshots.Delete(ctx, cartID); err != nil {
		ctx = s.logger.WithCartID(ctx, cartID)
		s.logger.Error(ctx, "deleting cart snapshot failed", err)
	}
}

// loadLocked rehydrates a cart under the store lock. The persisted total is
// discarded and recomputed from the items.
func (s *Store) loadLocked(ctx context.Context, cartID string) State {
	if state, ok := s.states[cartID]; ok {
		return state
	}
	state, found, err := s.snapshots.Load(ctx, cartID)
	if err != nil {
		ctx = s.logger.WithCartID(ctx, cartID)
		s.logger.Warn(ctx, fmt.Sprintf("cart snapshot rejected, starting empty: %v", err))
		state = EmptyState()
	} else if !found {
		state = EmptyState()
	}
	state = state.RecomputeTotal()
	s.states[cartID] = state
	return state
}
