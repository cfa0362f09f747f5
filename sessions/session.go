// Package sessions supplies one user's OAuth2 token to outgoing API requests, refreshing it
// when it goes stale or is rejected, and routing every attempt through the rate limit retrier.
package sessions

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/internal/metrics"
	"github.com/jrsteele09/go-ledger-sync/ratelimit"
	"github.com/jrsteele09/go-ledger-sync/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// Refresher exchanges a refresh token at the provider's token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, current *token.Token) (*token.Token, error)
}

// TokenStore is the part of token.Store a session needs.
type TokenStore interface {
	Get(ctx context.Context, user string) (*token.Token, error)
	Refresh(ctx context.Context, user string, stale *token.Token, refresh token.RefreshFunc) (*token.Token, error)
}

// Request describes an API call. It is rebuilt into a fresh *http.Request for every attempt.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type TokenSession struct {
	user       string
	store      TokenStore
	refresher  Refresher
	retrier    *ratelimit.Retrier
	httpClient *http.Client
	metrics    metrics.Recorder
	nowFunc    func() time.Time

	mu    sync.RWMutex
	tok   *token.Token
	group singleflight.Group
}

type Option func(*TokenSession)

func WithHTTPClient(c *http.Client) Option {
	return func(s *TokenSession) {
		s.httpClient = c
	}
}

func WithRetrier(r *ratelimit.Retrier) Option {
	return func(s *TokenSession) {
		s.retrier = r
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *TokenSession) {
		s.nowFunc = now
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *TokenSession) {
		s.metrics = m
	}
}

// New loads user's token from the store. A user without a stored token gets ErrNotAuthorised.
func New(ctx context.Context, user string, store TokenStore, refresher Refresher, options ...Option) (*TokenSession, error) {
	s := &TokenSession{
		user:       user,
		store:      store,
		refresher:  refresher,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		metrics:    metrics.Noop(),
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.retrier == nil {
		s.retrier = ratelimit.NewRetrier(ratelimit.WithMetrics(s.metrics))
	}

	tok, err := store.Get(ctx, user)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotAuthorised, "user %s", user)
		}
		return nil, apperrors.Wrapf(err, "[sessions New] loading token for %s", user)
	}
	s.tok = tok
	return s, nil
}

func (s *TokenSession) User() string {
	return s.user
}

// Token returns a copy of the in-memory token.
func (s *TokenSession) Token() token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.tok
}

// Do sends req with the current access token. A stale token is refreshed before sending.
// A 401 triggers one refresh and one resend; a second 401 is ErrAuthFailure. 429s are
// waited out by the retrier and each retry re-checks token freshness.
func (s *TokenSession) Do(ctx context.Context, req *Request) (*http.Response, error) {
	return s.retrier.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		return s.attempt(ctx, req)
	})
}

func (s *TokenSession) attempt(ctx context.Context, req *Request) (*http.Response, error) {
	tok, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.send(ctx, req, tok)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	log.Debug().Str("user", s.user).Msg("access token rejected, refreshing once")
	tok, err = s.refresh(ctx, tok)
	if err != nil {
		return nil, err
	}
	resp, err = s.send(ctx, req, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, apperrors.Wrapf(apperrors.ErrAuthFailure, "user %s", s.user)
	}
	return resp, nil
}

func (s *TokenSession) current(ctx context.Context) (*token.Token, error) {
	s.mu.RLock()
	tok := s.tok
	s.mu.RUnlock()

	if !tok.IsStale(s.nowFunc()) {
		return tok, nil
	}
	return s.refresh(ctx, tok)
}

// refresh replaces stale. Concurrent callers holding the same stale token share one call.
func (s *TokenSession) refresh(ctx context.Context, stale *token.Token) (*token.Token, error) {
	s.mu.RLock()
	latest := s.tok
	s.mu.RUnlock()
	if latest.RefreshToken != stale.RefreshToken && !latest.IsStale(s.nowFunc()) {
		return latest, nil
	}

	ch := s.group.DoChan(stale.RefreshToken, func() (any, error) {
		// The shared refresh must not die with whichever caller started it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		fresh, err := s.store.Refresh(rctx, s.user, stale, s.exchange)
		if err != nil {
			s.metrics.RecordTokenRefresh("failure")
			log.Error().Err(err).Str("user", s.user).Msg("token refresh failed")
			return nil, err
		}
		s.metrics.RecordTokenRefresh("success")

		s.mu.Lock()
		s.tok = fresh
		s.mu.Unlock()
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*token.Token), nil
	}
}

func (s *TokenSession) exchange(ctx context.Context, current *token.Token) (*token.Token, error) {
	fresh, err := s.refresher.Refresh(ctx, current)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "%v", err)
	}
	return fresh, nil
}

func (s *TokenSession) send(ctx context.Context, req *Request, tok *token.Token) (*http.Response, error) {
	u := req.URL
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[TokenSession send] building %s %s", req.Method, req.URL)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	httpReq.Header.Set("Authorization", tokenType+" "+tok.AccessToken)

	log.Debug().Str("method", req.Method).Str("url", u).Msg("provider request")
	return s.httpClient.Do(httpReq)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
