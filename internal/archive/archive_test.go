package archive_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openoj/judgehub/internal/archive"
	mockstore "github.com/openoj/judgehub/internal/storage/mock"
)

type memObject struct {
	data []byte
	pos  int
}

func (m *memObject) Read(p []byte) (int, error) {
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += n
	return n, nil
}

func (m *memObject) Close() error { return nil }

func TestBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mockstore.NewMockStore(ctrl)

	var uploaded []byte
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).Times(1)
	store.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, reader io.ReadSeeker, _ int64, _ string) error {
			var err error
			uploaded, err = io.ReadAll(reader)
			return err
		}).
		Times(1)

	name, err := archive.BundleCaseOutput(ctx, store, "program output\n", "warning: x unused\n")
	require.NoError(t, err, "failed to bundle case output")
	require.NotEmpty(t, name, "bundle must be content addressed")

	store.EXPECT().
		Get(gomock.Any(), gomock.Eq(name)).
		Return(&memObject{data: uploaded}, nil).
		Times(1)

	stdout, stderr, err := archive.ReadCaseOutput(ctx, store, name)
	require.NoError(t, err, "failed to read bundle back")
	assert.Equal(t, "program output\n", stdout)
	assert.Equal(t, "warning: x unused\n", stderr)
}

func TestReadCaseOutputCorrupt(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mockstore.NewMockStore(ctrl)

	store.EXPECT().
		Get(gomock.Any(), gomock.Eq("garbage")).
		Return(&memObject{data: []byte("this is not a zip")}, nil).
		Times(1)

	_, _, err := archive.ReadCaseOutput(ctx, store, "garbage")
	require.Error(t, err, "corrupt bundles must surface an error")
}

func TestStoreReport(t *testing.T) {
	t.Run("InlineUploads", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		store := mockstore.NewMockStore(ctrl)

		store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).Times(1)
		store.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(1)

		inline := "analysis report body"
		name, err := archive.StoreReport(ctx, store, &inline, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, name)
	})

	t.Run("ExistingPathKept", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		store := mockstore.NewMockStore(ctrl)

		existing := "already/stored"
		name, err := archive.StoreReport(ctx, store, nil, &existing)
		require.NoError(t, err)
		assert.Equal(t, existing, name)
	})

	t.Run("NothingSupplied", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		store := mockstore.NewMockStore(ctrl)

		name, err := archive.StoreReport(ctx, store, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, name)
	})
}
