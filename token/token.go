package token

import (
	"time"

	"golang.org/x/oauth2"
)

// StaleMargin is how close to expiry a token may get before it must be refreshed.
const StaleMargin = 60 * time.Second

// Token is the provider's OAuth2 token as persisted for one user.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds, issued_at + expires_in
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

// IsStale reports whether the token is within StaleMargin of expiry at now.
func (t *Token) IsStale(now time.Time) bool {
	return t.ExpiresAt-now.Unix() < int64(StaleMargin/time.Second)
}

func (t *Token) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

// CacheTTL is how long the token may live in a fast-path cache: expires_in - 60s.
func (t *Token) CacheTTL() time.Duration {
	ttl := time.Duration(t.ExpiresIn)*time.Second - StaleMargin
	if ttl < 0 {
		return 0
	}
	return ttl
}

// FromOAuth2 converts a token endpoint response. ExpiresAt is always recomputed from issuedAt.
func FromOAuth2(tok *oauth2.Token, issuedAt time.Time) *Token {
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(tok.Expiry.Sub(issuedAt).Round(time.Second) / time.Second)
	}

	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    issuedAt.Unix() + expiresIn,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		t.IDToken = idToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}

// OAuth2 converts back to the x/oauth2 representation used for refresh and request signing.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
		ExpiresIn:    t.ExpiresIn,
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": t.IDToken, "scope": t.Scope})
	}
	return tok
}
