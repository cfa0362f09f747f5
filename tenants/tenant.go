package tenants

import "time"

// Connection records that UserEmail authorised access to one organisation (tenant).
// It is created after authorization and only ever deleted, never updated.
type Connection struct {
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	UserEmail  string    `json:"user_email"` // owner of the token used to sync the tenant
	CreatedAt  time.Time `json:"created_at"`
}
