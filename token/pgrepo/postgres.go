// Package pgrepo stores encrypted tokens in PostgreSQL. Per-user exclusion across
// processes uses a transaction scoped advisory lock on the user's email.
package pgrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-ledger-sync/internal/dbx"
	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/token"
)

var _ token.Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db *sql.DB  // nil when bound to a transaction
	q  dbx.DBTX // *sql.DB or the current *sql.Tx
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

func (r *PostgresRepository) Replace(ctx context.Context, user string, ciphertext string) error {
	if r.db == nil {
		return replace(ctx, r.q, user, ciphertext)
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return replace(ctx, tx, user, ciphertext)
	})
}

func replace(ctx context.Context, q dbx.DBTX, user, ciphertext string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_email = $1`, user); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	query := `INSERT INTO oauth_tokens (user_email, ciphertext, updated_at)
		VALUES ($1, $2, now())`
	if _, err := q.ExecContext(ctx, query, user, ciphertext); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, user string) (string, error) {
	var ciphertext string
	err := r.q.QueryRowContext(ctx, `SELECT ciphertext FROM oauth_tokens WHERE user_email = $1`, user).Scan(&ciphertext)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("error performing sql request: %w", err)
	}
	return ciphertext, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, user string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_email = $1`, user)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) WithLock(ctx context.Context, user string, fn func(ctx context.Context, tx token.Repo) error) error {
	if r.db == nil {
		return fn(ctx, r)
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, user); err != nil {
			return fmt.Errorf("error acquiring token lock: %w", err)
		}
		return fn(ctx, &PostgresRepository{q: tx})
	})
}
