package tokenfakerepo

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo keeps ciphertext in memory. WithLock serialises per user like the
// advisory lock in the postgres repo does.
type FakeTokenRepo struct {
	tokens    map[string]string
	userLocks map[string]*sync.Mutex
	lock      sync.RWMutex

	// ReplaceErr, when set, is returned by every Replace.
	ReplaceErr error
}

func NewFakeTokensRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens:    make(map[string]string),
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (tr *FakeTokenRepo) Replace(_ context.Context, user string, ciphertext string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if tr.ReplaceErr != nil {
		return tr.ReplaceErr
	}
	delete(tr.tokens, user)
	tr.tokens[user] = ciphertext
	return nil
}

func (tr *FakeTokenRepo) Get(_ context.Context, user string) (string, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	ciphertext, ok := tr.tokens[user]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return ciphertext, nil
}

func (tr *FakeTokenRepo) Delete(_ context.Context, user string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[user]; !ok {
		return apperrors.ErrNotFound
	}
	delete(tr.tokens, user)
	return nil
}

// WithLock gives fn a snapshot-free view; a failing fn does not undo writes it already made,
// so callers in tests should only write as the last step.
func (tr *FakeTokenRepo) WithLock(ctx context.Context, user string, fn func(ctx context.Context, tx token.Repo) error) error {
	tr.lock.Lock()
	m, ok := tr.userLocks[user]
	if !ok {
		m = &sync.Mutex{}
		tr.userLocks[user] = m
	}
	tr.lock.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx, lockedView{tr})
}

// Len returns the number of stored tokens.
func (tr *FakeTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}

type lockedView struct {
	*FakeTokenRepo
}

func (v lockedView) WithLock(ctx context.Context, _ string, fn func(ctx context.Context, tx token.Repo) error) error {
	return fn(ctx, v)
}
