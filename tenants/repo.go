package tenants

import "context"

type Repo interface {
	// Create inserts conn unless a connection for the same tenant and user exists.
	Create(ctx context.Context, conn *Connection) error
	Delete(ctx context.Context, tenantID, userEmail string) error
	// Get returns the oldest connection for tenantID.
	Get(ctx context.Context, tenantID string) (*Connection, error)
	ListByUser(ctx context.Context, userEmail string) ([]*Connection, error)
	List(ctx context.Context, offset, limit int) ([]*Connection, error)
}
