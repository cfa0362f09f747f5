package token_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/token"
	tokenfakerepo "github.com/jrsteele09/go-ledger-sync/token/repofake"
	"github.com/stretchr/testify/require"
)

const user = "owner@example.com"

var fixedNow = time.Unix(1_700_000_000, 0)

func freshToken(refresh string) *token.Token {
	return &token.Token{
		AccessToken:  "access-" + refresh,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    1800,
		ExpiresAt:    fixedNow.Unix() + 1800,
	}
}

func staleToken(refresh string) *token.Token {
	tok := freshToken(refresh)
	tok.ExpiresAt = fixedNow.Unix() - 10
	return tok
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("cache down") }

func newStore(t *testing.T, repo token.Repo, opts ...token.StoreOption) *token.Store {
	t.Helper()
	opts = append([]token.StoreOption{token.WithNowFunc(func() time.Time { return fixedNow })}, opts...)
	return token.NewStore(repo, newCipher(t), opts...)
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	store := newStore(t, repo)

	require.NoError(t, store.Put(ctx, user, freshToken("r1")))
	require.NoError(t, store.Put(ctx, user, freshToken("r2")))
	require.Equal(t, 1, repo.Len())

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "r2", got.RefreshToken)

	stored, err := repo.Get(ctx, user)
	require.NoError(t, err)
	require.NotContains(t, stored, "r2")
}

func TestStoreGetNotFound(t *testing.T) {
	store := newStore(t, tokenfakerepo.NewFakeTokensRepo())
	_, err := store.Get(context.Background(), user)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreCacheHitSkipsRepo(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	cache := token.NewMemoryCache()
	store := newStore(t, repo, token.WithCache(cache))

	require.NoError(t, store.Put(ctx, user, freshToken("r1")))
	require.NoError(t, repo.Delete(ctx, user))

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "r1", got.RefreshToken)
}

func TestStoreCacheFailureFallsBackToRepo(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, tokenfakerepo.NewFakeTokensRepo(), token.WithCache(failingCache{}))

	require.NoError(t, store.Put(ctx, user, freshToken("r1")))
	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "r1", got.RefreshToken)
}

func TestStoreCorruptCacheEntryFallsBackAndEvicts(t *testing.T) {
	ctx := context.Background()
	cache := token.NewMemoryCache()
	store := newStore(t, tokenfakerepo.NewFakeTokensRepo(), token.WithCache(cache))

	require.NoError(t, store.Put(ctx, user, freshToken("r1")))
	require.NoError(t, cache.Set(ctx, token.CacheKey(user), []byte("garbage"), time.Minute))

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "r1", got.RefreshToken)

	_, ok, _ := cache.Get(ctx, token.CacheKey(user))
	require.False(t, ok)
}

func TestStoreCorruptRepoEntry(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	require.NoError(t, repo.Replace(ctx, user, "written-under-another-key"))

	_, err := newStore(t, repo).Get(ctx, user)
	require.ErrorIs(t, err, apperrors.ErrTokenCorrupted)
}

func TestStoreRefreshPersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	cache := token.NewMemoryCache()
	store := newStore(t, repo, token.WithCache(cache))
	require.NoError(t, store.Put(ctx, user, staleToken("r1")))
	require.NoError(t, cache.Delete(ctx, token.CacheKey(user)))

	got, err := store.Refresh(ctx, user, staleToken("r1"), func(ctx context.Context, current *token.Token) (*token.Token, error) {
		require.Equal(t, "r1", current.RefreshToken)
		return freshToken("r2"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "r2", got.RefreshToken)

	_, ok, _ := cache.Get(ctx, token.CacheKey(user))
	require.True(t, ok)

	require.NoError(t, cache.Delete(ctx, token.CacheKey(user)))
	durable, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "r2", durable.RefreshToken)
}

func TestStoreRefreshFailureLeavesDurableStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	store := newStore(t, repo)
	require.NoError(t, store.Put(ctx, user, staleToken("r1")))
	before, err := repo.Get(ctx, user)
	require.NoError(t, err)

	_, err = store.Refresh(ctx, user, staleToken("r1"), func(context.Context, *token.Token) (*token.Token, error) {
		return nil, errors.New("invalid_grant")
	})
	require.ErrorContains(t, err, "invalid_grant")

	after, err := repo.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestStoreRefreshAdoptsTokenRotatedElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	store := newStore(t, repo)
	require.NoError(t, store.Put(ctx, user, freshToken("r2")))

	got, err := store.Refresh(ctx, user, staleToken("r1"), func(context.Context, *token.Token) (*token.Token, error) {
		t.Fatal("refresh must not run when the durable token was already rotated")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "r2", got.RefreshToken)
}

func TestStoreRefreshWithoutStoredTokenIsNotAuthorised(t *testing.T) {
	store := newStore(t, tokenfakerepo.NewFakeTokensRepo())
	_, err := store.Refresh(context.Background(), user, staleToken("r1"), func(context.Context, *token.Token) (*token.Token, error) {
		return freshToken("r2"), nil
	})
	require.ErrorIs(t, err, apperrors.ErrNotAuthorised)
}

func TestStoreConcurrentRefreshSpendsRefreshTokenOnce(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	key, err := token.GenerateKey()
	require.NoError(t, err)
	raw, err := token.ParseKey(key)
	require.NoError(t, err)

	// Two stores over one repo stand in for two worker processes.
	var stores []*token.Store
	for i := 0; i < 2; i++ {
		c, err := token.NewCipher(raw)
		require.NoError(t, err)
		stores = append(stores, token.NewStore(repo, c, token.WithNowFunc(func() time.Time { return fixedNow })))
	}
	require.NoError(t, stores[0].Put(ctx, user, staleToken("r1")))

	var calls int32
	refresh := func(ctx context.Context, current *token.Token) (*token.Token, error) {
		n := atomic.AddInt32(&calls, 1)
		if current.RefreshToken != "r1" {
			return nil, fmt.Errorf("refresh token %s already spent", current.RefreshToken)
		}
		time.Sleep(10 * time.Millisecond)
		return freshToken(fmt.Sprintf("r%d", n+1)), nil
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make([]*token.Token, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = stores[i%2].Refresh(ctx, user, staleToken("r1"), refresh)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, "r2", results[i].RefreshToken)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	repo := tokenfakerepo.NewFakeTokensRepo()
	cache := token.NewMemoryCache()
	store := newStore(t, repo, token.WithCache(cache))

	require.NoError(t, store.Put(ctx, user, freshToken("r1")))
	require.NoError(t, store.Delete(ctx, user))
	require.NoError(t, store.Delete(ctx, user))

	_, err := store.Get(ctx, user)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
