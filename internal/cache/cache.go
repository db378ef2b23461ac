// Package cache holds short-lived status records keyed by target.
//
// Validity is checked lazily on every read: an entry is fresh strictly before
// its expiry instant and is never swept in the background. Substrates with
// native expiry (Redis) enforce the same rule on their side.
package cache

import (
	"context"
	"time"

	"github.com/hamed0406/serverwatch/internal/domain"
)

// Cache is the result cache consumed by the query client.
// An error means the backend is unavailable; callers treat it as a miss.
type Cache interface {
	Get(ctx context.Context, id domain.TargetID) (domain.StatusRecord, bool, error)
	// Set stores rec until now+ttl. A ttl <= 0 stores nothing.
	Set(ctx context.Context, id domain.TargetID, rec domain.StatusRecord, ttl time.Duration) error
	Invalidate(ctx context.Context, id domain.TargetID) error
}

// Entry wraps a record with its absolute expiry.
type Entry struct {
	Record    domain.StatusRecord
	ExpiresAt time.Time
}

// Valid reports whether now is strictly before the expiry instant.
func (e Entry) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
