package pgrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/tenants"
)

var _ tenants.Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, conn *tenants.Connection) error {
	query := `INSERT INTO tenant_connections (tenant_id, user_email, tenant_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_email) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, conn.TenantID, conn.UserEmail, conn.TenantName, conn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tenantID, userEmail string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tenant_connections WHERE tenant_id = $1 AND user_email = $2`, tenantID, userEmail)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (*tenants.Connection, error) {
	query := `SELECT tenant_id, tenant_name, user_email, created_at
		FROM tenant_connections
		WHERE tenant_id = $1
		ORDER BY created_at, user_email
		LIMIT 1`
	var c tenants.Connection
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&c.TenantID, &c.TenantName, &c.UserEmail, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userEmail string) ([]*tenants.Connection, error) {
	query := `SELECT tenant_id, tenant_name, user_email, created_at
		FROM tenant_connections
		WHERE user_email = $1
		ORDER BY created_at, tenant_id`
	rows, err := r.db.QueryContext(ctx, query, userEmail)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return scanConnections(rows)
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*tenants.Connection, error) {
	query := `SELECT tenant_id, tenant_name, user_email, created_at
		FROM tenant_connections
		ORDER BY created_at, tenant_id, user_email
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return scanConnections(rows)
}

func scanConnections(rows *sql.Rows) ([]*tenants.Connection, error) {
	defer rows.Close()
	var out []*tenants.Connection
	for rows.Next() {
		var c tenants.Connection
		if err := rows.Scan(&c.TenantID, &c.TenantName, &c.UserEmail, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
