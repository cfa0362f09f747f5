package ledger

import "context"

type Repo interface {
	// Checkpoint returns the stored checkpoint, or a zero one when the tenant has never synced.
	Checkpoint(ctx context.Context, tenantID, resource string) (Checkpoint, error)
	// Persist writes batch and advances the checkpoint to next in one transaction. Rows that
	// already exist are skipped. It returns the number of new journal headers.
	Persist(ctx context.Context, batch Batch, next Checkpoint) (int, error)
}
