// Package tokenstore persists the storefront bearer token between runs. The token is a
// single opaque string stored under a well-known key; its absence means anonymous.
package tokenstore

import "context"

// Store defines durable storage for the bearer token.
// Only the session store writes or deletes; everyone else reads.
type Store interface {
	// Get returns the persisted token, or an error wrapping errors.ErrNoToken when none is held
	Get(ctx context.Context) (string, error)

	// Set persists token, replacing any previous value
	Set(ctx context.Context, token string) error

	// Delete removes the persisted token. Deleting an absent token is not an error.
	Delete(ctx context.Context) error
}
