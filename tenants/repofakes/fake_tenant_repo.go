package tenantrepofakes

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	connections map[string]*tenants.Connection // key: tenantID|userEmail
	lock        sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		connections: make(map[string]*tenants.Connection),
	}
}

func key(tenantID, userEmail string) string {
	return tenantID + "|" + userEmail
}

func (tr *FakeTenantRepo) Create(_ context.Context, conn *tenants.Connection) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	k := key(conn.TenantID, conn.UserEmail)
	if _, ok := tr.connections[k]; ok {
		return nil
	}
	c := *conn
	tr.connections[k] = &c
	return nil
}

func (tr *FakeTenantRepo) Delete(_ context.Context, tenantID, userEmail string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	k := key(tenantID, userEmail)
	if _, ok := tr.connections[k]; !ok {
		return apperrors.ErrNotFound
	}
	delete(tr.connections, k)
	return nil
}

func (tr *FakeTenantRepo) Get(_ context.Context, tenantID string) (*tenants.Connection, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	var found *tenants.Connection
	for _, c := range tr.sorted() {
		if c.TenantID == tenantID {
			found = c
			break
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	c := *found
	return &c, nil
}

func (tr *FakeTenantRepo) ListByUser(_ context.Context, userEmail string) ([]*tenants.Connection, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	out := make([]*tenants.Connection, 0)
	for _, c := range tr.sorted() {
		if c.UserEmail == userEmail {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (tr *FakeTenantRepo) List(_ context.Context, offset, limit int) ([]*tenants.Connection, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	all := tr.sorted()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*tenants.Connection, 0, end-offset)
	for _, c := range all[offset:end] {
		cc := *c
		out = append(out, &cc)
	}
	return out, nil
}

// sorted orders by creation time, then tenant id. Callers hold the lock.
func (tr *FakeTenantRepo) sorted() []*tenants.Connection {
	all := make([]*tenants.Connection, 0, len(tr.connections))
	for _, c := range tr.connections {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return key(all[i].TenantID, all[i].UserEmail) < key(all[j].TenantID, all[j].UserEmail)
	})
	return all
}
