package storage

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

// Ensure RetryStore implements Store interface.
var _ Store = (*RetryStore)(nil)

// Meta store that wraps store operations in backoff loops
type RetryStore struct {
	store   Store
	backoff func() retry.Backoff
}

func NewRetryStoreBackoff(store Store, backoff func() retry.Backoff) *RetryStore {
	return &RetryStore{
		store:   store,
		backoff: backoff,
	}
}

// For non latency sensitive archiving
func NewRetryStore(store Store) *RetryStore {
	return &RetryStore{
		store: store,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(time.Second)
			b = retry.WithMaxDuration(time.Second*120, b)
			return b
		},
	}
}

func (r *RetryStore) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	name string,
) error {
	ctx, span := tracer.Start(ctx, "RetryStore.Upload")
	defer span.End()

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryStore.Upload.Retry")
		defer span.End()

		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to seek to start of buffer")
			return err
		}

		if err := r.store.Upload(ctx, reader, length, name); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upload")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "successfully retried")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded")
	return nil
}

// Get is not retried; the caller consumes the returned reader and a half-read
// stream cannot be resumed safely from here.
func (r *RetryStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "RetryStore.Get")
	defer span.End()

	reader, err := r.store.Get(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got object")
	return reader, nil
}

func (r *RetryStore) Exists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "RetryStore.Exists")
	defer span.End()

	var exists bool
	err := retry.Do(ctx, r.backoff(), func(rctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(rctx, "RetryStore.Exists.Retry")
		defer span.End()

		var err error
		exists, err = r.store.Exists(ctx, name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get exists")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "successfully retried")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get exists")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got exists")
	return exists, nil
}

func (r *RetryStore) Delete(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "RetryStore.Delete")
	defer span.End()

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryStore.Delete.Retry")
		defer span.End()

		if err := r.store.Delete(ctx, name); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "successfully retried")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "deleted")
	return nil
}

func (r *RetryStore) StoreIdentifier(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "RetryStore.StoreIdentifier")
	defer span.End()

	var ident string
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryStore.StoreIdentifier.Retry")
		defer span.End()

		var err error
		ident, err = r.store.StoreIdentifier(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get store identifier")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "successfully retried")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get store identifier")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got store identifier")
	return ident, nil
}

func (r *RetryStore) PresignedReadURL(
	ctx context.Context,
	name string,
	duration time.Duration,
) (string, error) {
	ctx, span := tracer.Start(ctx, "RetryStore.PresignedReadURL")
	defer span.End()

	var presigned string
	//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "RetryStore.PresignedReadURL.Retry")
		defer span.End()

		var err error
		presigned, err = r.store.PresignedReadURL(ctx, name, duration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get presigned")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "successfully retried")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get presigned")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got presigned")
	return presigned, nil
}
