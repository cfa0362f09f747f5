package pgrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-ledger-sync/internal/dbx"
	"github.com/jrsteele09/go-ledger-sync/ledger"
)

var _ ledger.Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Checkpoint(ctx context.Context, tenantID, resource string) (ledger.Checkpoint, error) {
	cp := ledger.Checkpoint{TenantID: tenantID, Resource: resource}
	query := `SELECT last_sequence_number, last_update
		FROM sync_checkpoints
		WHERE tenant_id = $1 AND resource = $2`
	var lastUpdate sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tenantID, resource).Scan(&cp.LastSequenceNumber, &lastUpdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cp, nil
		}
		return cp, fmt.Errorf("error performing sql request: %w", err)
	}
	if lastUpdate.Valid {
		cp.LastUpdate = lastUpdate.Time.UTC()
	}
	return cp, nil
}

const (
	insertJournal = `INSERT INTO journals
		(tenant_id, journal_id, journal_number, journal_date, created_date_utc, reference, source_id, source_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`
	insertLine = `INSERT INTO journal_lines
		(tenant_id, journal_line_id, journal_id, journal_number, account_id, account_code, account_type,
		account_name, description, net_amount, gross_amount, tax_amount, tax_type, tax_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING`
	insertTracking = `INSERT INTO journal_line_tracking
		(tenant_id, journal_line_id, tracking_category_id, tracking_option_id, name, option)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`
	upsertCheckpoint = `INSERT INTO sync_checkpoints (tenant_id, resource, last_sequence_number, last_update, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id, resource) DO UPDATE SET
		last_sequence_number = GREATEST(sync_checkpoints.last_sequence_number, EXCLUDED.last_sequence_number),
		last_update = GREATEST(sync_checkpoints.last_update, EXCLUDED.last_update),
		updated_at = now()`
)

func (r *PostgresRepository) Persist(ctx context.Context, batch ledger.Batch, next ledger.Checkpoint) (int, error) {
	inserted := 0
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		inserted = 0
		for _, h := range batch.Headers {
			res, err := tx.ExecContext(ctx, insertJournal, h.TenantID, h.JournalID, h.JournalNumber,
				nullTime(h.JournalDate), nullTime(h.CreatedDateUTC), h.Reference, h.SourceID, h.SourceType)
			if err != nil {
				return fmt.Errorf("error inserting journal %d: %w", h.JournalNumber, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		for _, l := range batch.Lines {
			_, err := tx.ExecContext(ctx, insertLine, l.TenantID, l.JournalLineID, l.JournalID, l.JournalNumber,
				l.AccountID, l.AccountCode, l.AccountType, l.AccountName, l.Description,
				l.NetAmount, l.GrossAmount, l.TaxAmount, l.TaxType, l.TaxName)
			if err != nil {
				return fmt.Errorf("error inserting journal line %s: %w", l.JournalLineID, err)
			}
		}
		for _, t := range batch.Tracking {
			_, err := tx.ExecContext(ctx, insertTracking, t.TenantID, t.JournalLineID, t.TrackingCategoryID,
				t.TrackingOptionID, t.Name, t.Option)
			if err != nil {
				return fmt.Errorf("error inserting tracking for line %s: %w", t.JournalLineID, err)
			}
		}
		_, err := tx.ExecContext(ctx, upsertCheckpoint, next.TenantID, next.Resource, next.LastSequenceNumber, nullTime(next.LastUpdate))
		if err != nil {
			return fmt.Errorf("error advancing checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
