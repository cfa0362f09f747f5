package token

import "context"

// Repo is the durable, encrypted credential table keyed by user email.
type Repo interface {
	// Replace removes any existing row for user and inserts ciphertext, atomically.
	Replace(ctx context.Context, user string, ciphertext string) error
	// Get returns errors.ErrNotFound when the user has no stored token.
	Get(ctx context.Context, user string) (string, error)
	Delete(ctx context.Context, user string) error
	// WithLock runs fn holding an exclusive lock on user's credential, with tx scoped to the
	// same transaction. Other processes calling WithLock for the same user block until fn returns.
	WithLock(ctx context.Context, user string, fn func(ctx context.Context, tx Repo) error) error
}
