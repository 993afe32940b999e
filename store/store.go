// Package store holds the durable key/value adapters the cart and session
// persist into. Values are opaque strings; callers own their encoding.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("key not found")

// Keys written by the storefront core.
const (
	KeyAccessToken  = "access"
	KeyRefreshToken = "refresh"
	KeyCart         = "coffee_cart"
	KeyWelcomeSeen  = "welcome_seen"
)

// Store defines the durable string store used by the cart and session.
// Implementations must make a completed Set visible to a later process.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
