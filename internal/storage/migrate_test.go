package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openoj/judgehub/internal/storage"
	mockstore "github.com/openoj/judgehub/internal/storage/mock"
)

func body(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

func TestMigrateObject(t *testing.T) {
	t.Run("SkipsWhenCurrentExists", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		current.EXPECT().Exists(gomock.Any(), gomock.Eq("blob")).Return(true, nil).Times(1)

		m := storage.NewMigrator(legacy, current)
		err := m.MigrateObject(ctx, "blob")

		require.NoError(t, err, "migrate should be a no-op when the current copy exists")
	})

	t.Run("CopiesWhenMissing", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		current.EXPECT().Exists(gomock.Any(), gomock.Eq("blob")).Return(false, nil).Times(1)
		legacy.EXPECT().Get(gomock.Any(), gomock.Eq("blob")).Return(body("contents"), nil).Times(1)
		current.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Eq(int64(len("contents"))), gomock.Eq("blob")).
			Return(nil).
			Times(1)

		m := storage.NewMigrator(legacy, current)
		err := m.MigrateObject(ctx, "blob")

		require.NoError(t, err, "failed to migrate object")
	})
}

func TestVerifyObject(t *testing.T) {
	t.Run("MatchPrunesLegacy", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		legacy.EXPECT().Get(gomock.Any(), gomock.Eq("blob")).Return(body("same"), nil).Times(1)
		current.EXPECT().Get(gomock.Any(), gomock.Eq("blob")).Return(body("same"), nil).Times(1)
		legacy.EXPECT().Delete(gomock.Any(), gomock.Eq("blob")).Return(nil).Times(1)

		m := storage.NewMigrator(legacy, current)
		err := m.VerifyObject(ctx, "blob")

		require.NoError(t, err, "matching copies should verify")
	})

	t.Run("MismatchKeepsBothCopies", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		legacy.EXPECT().Get(gomock.Any(), gomock.Eq("blob")).Return(body("old bytes"), nil).Times(1)
		current.EXPECT().Get(gomock.Any(), gomock.Eq("blob")).Return(body("new bytes"), nil).Times(1)
		// no Delete expectation: mismatches must never remove data

		m := storage.NewMigrator(legacy, current)
		err := m.VerifyObject(ctx, "blob")

		require.Error(t, err, "divergent copies must not verify")
		assert.ErrorIs(t, err, storage.ErrConsistencyMismatch, "expected a consistency mismatch")
	})

	t.Run("LegacyReadError", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		legacy.EXPECT().
			Get(gomock.Any(), gomock.Eq("blob")).
			Return(nil, errors.New("expected error")).
			Times(1)

		m := storage.NewMigrator(legacy, current)
		err := m.VerifyObject(ctx, "blob")

		require.Error(t, err, "somehow did not get error")
	})
}

func TestMigrateAndVerify(t *testing.T) {
	t.Run("MixedBatch", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		legacy := mockstore.NewMockStore(ctrl)
		current := mockstore.NewMockStore(ctrl)

		// "good" migrates and verifies; "bad" diverges and stays on both sides.
		current.EXPECT().Exists(gomock.Any(), gomock.Eq("good")).Return(true, nil).Times(1)
		legacy.EXPECT().Get(gomock.Any(), gomock.Eq("good")).Return(body("same"), nil).Times(1)
		current.EXPECT().Get(gomock.Any(), gomock.Eq("good")).Return(body("same"), nil).Times(1)
		legacy.EXPECT().Delete(gomock.Any(), gomock.Eq("good")).Return(nil).Times(1)

		current.EXPECT().Exists(gomock.Any(), gomock.Eq("bad")).Return(true, nil).Times(1)
		legacy.EXPECT().Get(gomock.Any(), gomock.Eq("bad")).Return(body("a"), nil).Times(1)
		current.EXPECT().Get(gomock.Any(), gomock.Eq("bad")).Return(body("b"), nil).Times(1)

		m := storage.NewMigrator(legacy, current)
		done, err := m.MigrateAndVerify(ctx, []string{"good", "bad"})

		assert.Equal(t, 1, done, "exactly one object should complete")
		require.Error(t, err, "batch error should surface the mismatch")
		assert.ErrorIs(t, err, storage.ErrConsistencyMismatch)
	})
}
