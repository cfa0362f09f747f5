package tenants

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/xero"
	"github.com/rs/zerolog/log"
)

// Provider is the user scoped part of the API client.
type Provider interface {
	ListConnections(ctx context.Context) ([]xero.Connection, error)
	RemoveConnection(ctx context.Context, tenantID string) error
}

type Service struct {
	repo    Repo
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(repo Repo, options ...ServiceOption) *Service {
	s := &Service{repo: repo, nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Refresh mirrors the provider's connection list for user: connections the provider
// returns are created, stored ones it no longer returns are deleted.
func (s *Service) Refresh(ctx context.Context, user string, provider Provider) ([]*Connection, error) {
	remote, err := provider.ListConnections(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[tenants Refresh] listing connections for %s", user)
	}

	seen := make(map[string]bool, len(remote))
	for _, rc := range remote {
		if rc.TenantID == "" {
			continue
		}
		seen[rc.TenantID] = true
		conn := &Connection{
			TenantID:   rc.TenantID,
			TenantName: rc.TenantName,
			UserEmail:  user,
			CreatedAt:  s.nowFunc(),
		}
		if err := s.repo.Create(ctx, conn); err != nil {
			return nil, apperrors.Wrapf(err, "[tenants Refresh] storing %s", rc.TenantID)
		}
	}

	local, err := s.repo.ListByUser(ctx, user)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[tenants Refresh] listing stored connections")
	}
	kept := make([]*Connection, 0, len(local))
	for _, conn := range local {
		if seen[conn.TenantID] {
			kept = append(kept, conn)
			continue
		}
		log.Info().Str("user", user).Str("tenant_id", conn.TenantID).Msg("connection revoked at provider, removing")
		if err := s.repo.Delete(ctx, conn.TenantID, user); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrapf(err, "[tenants Refresh] deleting %s", conn.TenantID)
		}
	}
	return kept, nil
}

// Disconnect revokes the connection at the provider and forgets it locally. A connection
// the provider no longer knows about is still removed locally.
func (s *Service) Disconnect(ctx context.Context, user, tenantID string, provider Provider) error {
	if err := provider.RemoveConnection(ctx, tenantID); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrapf(err, "[tenants Disconnect] revoking %s", tenantID)
	}
	if err := s.repo.Delete(ctx, tenantID, user); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrapf(err, "[tenants Disconnect] deleting %s", tenantID)
	}
	log.Info().Str("user", user).Str("tenant_id", tenantID).Msg("tenant disconnected")
	return nil
}

func (s *Service) ListByUser(ctx context.Context, user string) ([]*Connection, error) {
	return s.repo.ListByUser(ctx, user)
}

// All pages through every stored connection.
func (s *Service) All(ctx context.Context) ([]*Connection, error) {
	const pageSize = 500
	var all []*Connection
	for offset := 0; ; offset += pageSize {
		page, err := s.repo.List(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (s *Service) Get(ctx context.Context, tenantID string) (*Connection, error) {
	return s.repo.Get(ctx, tenantID)
}
