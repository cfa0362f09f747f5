package token

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RefreshFunc exchanges current's refresh token for a new token.
type RefreshFunc func(ctx context.Context, current *Token) (*Token, error)

// Store is the credential store: tokens encrypted at rest, one live token per user.
type Store struct {
	repo    Repo
	cipher  *Cipher
	cache   Cache
	locks   keyedMutex
	nowFunc func() time.Time
}

type StoreOption func(*Store)

func WithCache(cache Cache) StoreOption {
	return func(s *Store) {
		s.cache = cache
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(repo Repo, cipher *Cipher, options ...StoreOption) *Store {
	s := &Store{
		repo:    repo,
		cipher:  cipher,
		cache:   NoopCache{},
		locks:   keyedMutex{locks: make(map[string]*keyedLock)},
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Put encrypts tok and replaces any token previously stored for user.
func (s *Store) Put(ctx context.Context, user string, tok *Token) error {
	ciphertext, err := s.cipher.EncryptToken(tok)
	if err != nil {
		return errors.Wrap(err, "Store.Put Encrypt")
	}

	err = s.repo.WithLock(ctx, user, func(ctx context.Context, tx Repo) error {
		return tx.Replace(ctx, user, ciphertext)
	})
	if err != nil {
		return errors.Wrap(err, "Store.Put Replace")
	}

	s.cacheSet(ctx, user, ciphertext, tok.CacheTTL())
	return nil
}

// Get returns the user's token, from the cache when possible.
func (s *Store) Get(ctx context.Context, user string) (*Token, error) {
	key := CacheKey(user)
	cached, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("user", user).Msg("token cache read failed, falling back to repo")
	case ok:
		tok, err := s.cipher.DecryptToken(string(cached))
		if err == nil {
			return tok, nil
		}
		log.Warn().Err(err).Str("user", user).Msg("cached token unreadable, evicting")
		_ = s.cache.Delete(ctx, key)
	}

	ciphertext, err := s.repo.Get(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "Store.Get")
	}
	return s.cipher.DecryptToken(ciphertext)
}

func (s *Store) Delete(ctx context.Context, user string) error {
	err := s.repo.WithLock(ctx, user, func(ctx context.Context, tx Repo) error {
		return tx.Delete(ctx, user)
	})
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return errors.Wrap(err, "Store.Delete")
	}
	if err := s.cache.Delete(ctx, CacheKey(user)); err != nil {
		log.Warn().Err(err).Str("user", user).Msg("token cache delete failed")
	}
	return nil
}

// Refresh replaces stale with a new token while holding the user's lock, both in-process
// and in the repo. When another worker already rotated the token and the durable copy is
// still fresh, that copy is returned and refresh is not called, so a refresh token is
// never spent twice. If refresh fails nothing is written.
func (s *Store) Refresh(ctx context.Context, user string, stale *Token, refresh RefreshFunc) (*Token, error) {
	unlock := s.locks.lock(user)
	defer unlock()

	var (
		result     *Token
		ciphertext string
	)
	err := s.repo.WithLock(ctx, user, func(ctx context.Context, tx Repo) error {
		stored, err := tx.Get(ctx, user)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.ErrNotAuthorised
			}
			return err
		}
		current, err := s.cipher.DecryptToken(stored)
		if err != nil {
			return err
		}

		if stale == nil || current.RefreshToken != stale.RefreshToken {
			if !current.IsStale(s.nowFunc()) {
				result = current
				return nil
			}
		}

		fresh, err := refresh(ctx, current)
		if err != nil {
			return err
		}
		ciphertext, err = s.cipher.EncryptToken(fresh)
		if err != nil {
			return err
		}
		if err := tx.Replace(ctx, user, ciphertext); err != nil {
			log.Error().Err(err).Str("user", user).Msg("refreshed token could not be persisted")
			return err
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ciphertext != "" {
		s.cacheSet(ctx, user, ciphertext, result.CacheTTL())
		log.Debug().Str("user", user).Time("expires_at", result.Expiry()).Msg("token refreshed")
	} else {
		log.Debug().Str("user", user).Msg("adopted token refreshed by another worker")
	}
	return result, nil
}

func (s *Store) cacheSet(ctx context.Context, user, ciphertext string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(user), []byte(ciphertext), ttl); err != nil {
		log.Warn().Err(err).Str("user", user).Msg("token cache write failed")
	}
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// keyedMutex serialises work per key without a global lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
