package storage

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/openoj/judgehub/internal/hash"
)

var tracer = otel.Tracer(
	"github.com/openoj/judgehub/internal/storage",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Store

// Generic blob persistence interface for code archives, case outputs,
// compiled binaries and reports.
type Store interface {
	// Create / Overwrite object contents at `name`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, name string) error
	// Open the object at `name` for reading; the caller closes it
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// Check if an object exists (focused on preventing uploading the same object
	// multiple times, not authoritative existence)
	//
	// May always return false
	Exists(ctx context.Context, name string) (bool, error)
	// Remove the object at `name`
	Delete(ctx context.Context, name string) error
	// Provide an identifier for where objects are being stored. Useful for
	// logging and auditing purposes.
	StoreIdentifier(ctx context.Context) (string, error)
	// Anonymous, readonly, internet accessible URL for downloading the object
	PresignedReadURL(ctx context.Context, name string, duration time.Duration) (string, error)
}

// Uploads a buffer where the object name will be the hash of the contents of
// `reader` (CAS)
//
// Will:
// 1. seek to 0 so only pass in a buffer you want completely uploaded
// 2. not upload if an object with the same hash already exists
func Hashed(
	ctx context.Context,
	s Store,
	reader io.ReadSeeker,
	length int64,
) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed")
	defer span.End()

	_, err := reader.Seek(0, io.SeekStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	hashedContent, err := hash.Reader(ctx, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash reader")
		return "", err
	}

	exists, err := s.Exists(ctx, hashedContent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return hashedContent, nil
	}

	_, err = reader.Seek(0, io.SeekStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	err = s.Upload(ctx, reader, length, hashedContent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return hashedContent, nil
}
