package scheduler

import (
	"context"

	"github.com/jrsteele09/go-ledger-sync/ledger"
	"github.com/jrsteele09/go-ledger-sync/sessions"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	"github.com/jrsteele09/go-ledger-sync/xero"
)

// ClientFactory builds a fresh token session and API client per job so that workers
// never share session state. The token store underneath is shared.
type ClientFactory struct {
	store       sessions.TokenStore
	refresher   sessions.Refresher
	sessionOpts []sessions.Option
	clientOpts  []xero.ClientOption
}

func NewClientFactory(store sessions.TokenStore, refresher sessions.Refresher, sessionOpts []sessions.Option, clientOpts []xero.ClientOption) *ClientFactory {
	return &ClientFactory{
		store:       store,
		refresher:   refresher,
		sessionOpts: sessionOpts,
		clientOpts:  clientOpts,
	}
}

// ForUser returns a user scoped client. It fails with ErrNotAuthorised when the user
// has no stored token.
func (f *ClientFactory) ForUser(ctx context.Context, user string) (*xero.Client, error) {
	sess, err := sessions.New(ctx, user, f.store, f.refresher, f.sessionOpts...)
	if err != nil {
		return nil, err
	}
	return xero.NewClient(sess, f.clientOpts...), nil
}

func (f *ClientFactory) Source(ctx context.Context, user, tenantID string) (ledger.JournalSource, error) {
	c, err := f.ForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return c.ForTenant(tenantID), nil
}

// Provider is ForUser narrowed to the connection operations.
func (f *ClientFactory) Provider(ctx context.Context, user string) (tenants.Provider, error) {
	c, err := f.ForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return c, nil
}
