package auth

import (
	"context"
	"time"
)

// Denylist records tokens that were logged out before expiry. Entries only
// need to live as long as the token itself.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
