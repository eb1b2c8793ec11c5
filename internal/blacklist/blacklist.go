// Package blacklist tracks access tokens revoked before their natural expiry.
//
// The store is consulted on every authenticated request, so implementations
// must keep Contains cheap. Add must be idempotent.
package blacklist

import (
	"context"
	"time"
)

type Store interface {
	// Add marks token as revoked. ttl is the remaining lifetime of the token;
	// implementations may use it to bound retention, or ignore it.
	Add(ctx context.Context, token string, ttl time.Duration) error

	// Contains reports whether token has been revoked.
	Contains(ctx context.Context, token string) (bool, error)

	// Cleanup evicts entries that are no longer needed. Implementations
	// without eviction return nil.
	Cleanup(ctx context.Context) error
}
