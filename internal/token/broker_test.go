package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openoj/judgehub/internal/token"
	mockcache "github.com/openoj/judgehub/internal/token/mock"
)

// memCacheOn wires the gomock cache to an in-memory map so the single-use
// behavior can be exercised end to end.
func memCacheOn(cache *mockcache.MockCache) {
	var mu sync.Mutex
	store := map[string]string{}

	cache.EXPECT().
		Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key, value string, _ time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			store[key] = value
			return nil
		}).
		AnyTimes()

	cache.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			value, ok := store[key]
			if !ok {
				return "", token.ErrNoToken
			}
			return value, nil
		}).
		AnyTimes()

	cache.EXPECT().
		Delete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string) error {
			mu.Lock()
			defer mu.Unlock()
			delete(store, key)
			return nil
		}).
		AnyTimes()
}

func TestBroker(t *testing.T) {
	t.Run("ConsumedExactlyOnce", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		cache := mockcache.NewMockCache(ctrl)
		memCacheOn(cache)

		broker := token.NewBroker(cache)

		tok, err := broker.Issue(ctx, "sub-1")
		require.NoError(t, err, "failed to issue token")
		require.NotEmpty(t, tok)

		ok, err := broker.Verify(ctx, "sub-1", tok)
		require.NoError(t, err, "failed to verify token")
		assert.True(t, ok, "first verification should succeed")

		ok, err = broker.Verify(ctx, "sub-1", tok)
		require.NoError(t, err, "second verify should not error")
		assert.False(t, ok, "token must be single use")
	})

	t.Run("WrongTokenRejected", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		cache := mockcache.NewMockCache(ctrl)
		memCacheOn(cache)

		broker := token.NewBroker(cache)

		tok, err := broker.Issue(ctx, "sub-2")
		require.NoError(t, err, "failed to issue token")

		ok, err := broker.Verify(ctx, "sub-2", "not-the-token")
		require.NoError(t, err)
		assert.False(t, ok, "mismatched token must be rejected")

		// A failed compare does not consume the real credential.
		ok, err = broker.Verify(ctx, "sub-2", tok)
		require.NoError(t, err)
		assert.True(t, ok, "real token should still verify")
	})

	t.Run("NoTokenIssued", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		cache := mockcache.NewMockCache(ctrl)
		memCacheOn(cache)

		broker := token.NewBroker(cache)

		ok, err := broker.Verify(ctx, "sub-3", "anything")
		require.NoError(t, err, "missing token is not an error")
		assert.False(t, ok)
	})

	t.Run("ReissueReplaces", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		cache := mockcache.NewMockCache(ctrl)
		memCacheOn(cache)

		broker := token.NewBroker(cache)

		first, err := broker.Issue(ctx, "sub-4")
		require.NoError(t, err)
		second, err := broker.Issue(ctx, "sub-4")
		require.NoError(t, err)
		require.NotEqual(t, first, second, "tokens must be random per dispatch")

		ok, err := broker.Verify(ctx, "sub-4", first)
		require.NoError(t, err)
		assert.False(t, ok, "stale token from the previous dispatch must fail")

		ok, err = broker.Verify(ctx, "sub-4", second)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
