package authflowrepo

import (
	"context"
	"time"
)

// AuthFlowState is what the callback needs to finish an authorization started by /connect.
type AuthFlowState struct {
	CodeVerifier string    `json:"code_verifier"`
	ReturnURL    string    `json:"return_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the flow is older than ttl. A zero ttl never expires.
func (s *AuthFlowState) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}

type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	Get(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
}
