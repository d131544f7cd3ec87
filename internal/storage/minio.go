package storage

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure MinioStore implements Store interface.
var _ Store = (*MinioStore)(nil)

// Minio (S3) backed store
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(
	endpoint, id, secret string,
	ssl bool,
	bucket string,
) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(id, secret, ""),
		Secure: ssl,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{
		client: client,
		bucket: bucket,
	}, nil
}

func NewMinioStoreFromClient(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *MinioStore) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	name string,
) error {
	ctx, span := tracer.Start(ctx, "MinioStore.Upload", trace.WithAttributes(
		attribute.String("name", name),
		attribute.Int64("length", length),
	))
	defer span.End()

	_, err := s.client.PutObject(ctx, s.bucket, name, reader, length, minio.PutObjectOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put object")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "put object")
	return nil
}

func (s *MinioStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "MinioStore.Get", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got object")
	return obj, nil
}

func (s *MinioStore) Exists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "MinioStore.Exists", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "did not find object")
			return false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to stat object")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "statted object")
	return true, nil
}

func (s *MinioStore) Delete(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "MinioStore.Delete", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove object")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "removed object")
	return nil
}

func (s *MinioStore) StoreIdentifier(_ context.Context) (string, error) {
	return s.bucket, nil
}

func (s *MinioStore) PresignedReadURL(
	ctx context.Context,
	name string,
	duration time.Duration,
) (string, error) {
	ctx, span := tracer.Start(ctx, "MinioStore.PresignedReadURL", trace.WithAttributes(
		attribute.String("name", name),
		attribute.String("duration", duration.String()),
	))
	defer span.End()

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, name, duration, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get presigned url")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got presigned url")
	return presigned.String(), nil
}
