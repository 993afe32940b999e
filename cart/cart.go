// Package cart owns the visitor's cart and keeps it persisted after every
// mutation.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"storefront/apperr"
	"storefront/notify"
	"storefront/store"
)

// EventKind names a cart change.
type EventKind string

const (
	EventLoaded  EventKind = "loaded"
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventCleared EventKind = "cleared"
)

// Event is published after a change has been persisted.
type Event struct {
	Kind      EventKind
	ProductID ProductID
	ItemCount int
}

// Store is the cart. Mutations hold the lock across the persist write so two
// serialized carts never interleave in the backing store.
type Store struct {
	mu          sync.RWMutex
	lines       []Line
	initialized bool
	once        sync.Once

	backing store.Store
	logger  *slog.Logger
	hub     *notify.Hub[Event]
}

// New creates a cart over backing. Call Initialize before mutating.
func New(backing store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backing: backing,
		logger:  logger,
		hub:     notify.NewHub[Event](),
	}
}

// Initialize loads the persisted cart. An absent, unreadable or corrupt value
// yields an empty cart. Only the first call has an effect.
func (s *Store) Initialize(ctx context.Context) {
	s.once.Do(func() {
		lines := s.load(ctx)

		s.mu.Lock()
		s.lines = lines
		s.initialized = true
		count := itemCount(lines)
		s.mu.Unlock()

		s.logger.Info("cart initialized", "lines", len(lines), "item_count", count)
		s.hub.Publish(Event{Kind: EventLoaded, ItemCount: count})
	})
}

func (s *Store) load(ctx context.Context) []Line {
	raw, err := s.backing.Get(ctx, store.KeyCart)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to read persisted cart, starting empty", "error", err)
		}
		return []Line{}
	}

	lines, err := Decode(raw)
	if err != nil {
		s.logger.Warn("persisted cart is corrupt, starting empty", "error", err)
		return []Line{}
	}
	return lines
}

// Add appends a line with quantity 1 or increments the existing line. The
// product snapshot is recorded on the first add only.
func (s *Store) Add(ctx context.Context, id ProductID, product json.RawMessage) error {
	id = ProductID(strings.TrimSpace(string(id)))
	if id == "" {
		return apperr.NewValidationError("product_id", "Product id is required.")
	}

	return s.mutate(ctx, EventAdded, id, func(lines []Line) ([]Line, bool) {
		if idx := indexOf(lines, id); idx >= 0 {
			lines[idx].Quantity++
			return lines, true
		}
		return append(lines, Line{ProductID: id, Quantity: 1, Product: product}), true
	})
}

// Remove decrements the line for id, stopping at zero. The line is kept.
// Removing an unknown id changes nothing and writes nothing.
func (s *Store) Remove(ctx context.Context, id ProductID) error {
	id = ProductID(strings.TrimSpace(string(id)))

	return s.mutate(ctx, EventRemoved, id, func(lines []Line) ([]Line, bool) {
		idx := indexOf(lines, id)
		if idx < 0 {
			return lines, false
		}
		if lines[idx].Quantity > 0 {
			lines[idx].Quantity--
		}
		return lines, true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, EventCleared, "", func([]Line) ([]Line, bool) {
		return []Line{}, true
	})
}

// mutate applies fn to a copy of the lines, persists the result and only then
// commits it. A failed write leaves memory at the last persisted state.
func (s *Store) mutate(ctx context.Context, kind EventKind, id ProductID, fn func([]Line) ([]Line, bool)) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return fmt.Errorf("cart: %w", apperr.ErrNotInitialized)
	}

	next, changed := fn(cloneLines(s.lines))
	if !changed {
		s.mu.Unlock()
		return nil
	}

	raw, err := Encode(next)
	if err == nil {
		err = s.backing.Set(ctx, store.KeyCart, raw)
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to persist cart", "event", kind, "product_id", id, "error", err)
		return fmt.Errorf("failed to persist cart: %w", err)
	}

	s.lines = next
	count := itemCount(next)
	// Publish never blocks, so events leave in commit order.
	s.hub.Publish(Event{Kind: kind, ProductID: id, ItemCount: count})
	s.mu.Unlock()

	s.logger.Debug("cart updated", "event", kind, "product_id", id, "item_count", count)
	return nil
}

// ItemCount is the sum of all quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return itemCount(s.lines)
}

// Lines returns a copy of every line, zero-quantity ones included, in
// insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

// OrderableLines returns the lines with a positive quantity.
func (s *Store) OrderableLines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Quantity returns the quantity for id, or 0 when there is no line.
func (s *Store) Quantity(id ProductID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := indexOf(s.lines, id); idx >= 0 {
		return s.lines[idx].Quantity
	}
	return 0
}

// Subscribe registers an observer of cart changes.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.hub.Subscribe()
}

// Close releases all subscribers.
func (s *Store) Close() {
	s.hub.Close()
}

func itemCount(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}
