package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openoj/judgehub/internal/storage"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/internal/archive")

const (
	stdoutEntry = "stdout"
	stderrEntry = "stderr"
)

// BundleCaseOutput compresses a case's captured stdout/stderr into a zip and
// uploads it content addressed. Only the returned object name is meant to be
// persisted, never the raw bytes.
func BundleCaseOutput(
	ctx context.Context,
	s storage.Store,
	stdout, stderr string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "BundleCaseOutput", trace.WithAttributes(
		attribute.Int("stdout.len", len(stdout)),
		attribute.Int("stderr.len", len(stderr)),
	))
	defer span.End()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for entry, content := range map[string]string{
		stdoutEntry: stdout,
		stderrEntry: stderr,
	} {
		f, err := w.Create(entry)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create zip entry")
			return "", err
		}

		if _, err := f.Write([]byte(content)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write zip entry")
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to finalize zip")
		return "", err
	}

	name, err := storage.Hashed(ctx, s, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload case output bundle")
		return "", err
	}

	span.SetAttributes(attribute.String("name", name))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "bundled case output")
	return name, nil
}

// ReadCaseOutput opens a stored case bundle and extracts stdout/stderr.
// Corrupt or unreadable bundles surface as errors so callers can degrade to
// partial results.
func ReadCaseOutput(
	ctx context.Context,
	s storage.Store,
	name string,
) (string, string, error) {
	ctx, span := tracer.Start(ctx, "ReadCaseOutput", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	reader, err := s.Get(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open case output bundle")
		return "", "", err
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read case output bundle")
		return "", "", err
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "case output bundle is not a valid zip")
		return "", "", err
	}

	contents := map[string]string{}
	for _, entry := range []string{stdoutEntry, stderrEntry} {
		f, err := zr.Open(entry)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "case output bundle is missing an entry")
			return "", "", fmt.Errorf("bundle missing %s: %w", entry, err)
		}

		data, err := io.ReadAll(f)
		closeErr := f.Close()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read bundle entry")
			return "", "", err
		}
		if closeErr != nil {
			span.RecordError(closeErr)
			span.SetStatus(codes.Error, "failed to close bundle entry")
			return "", "", closeErr
		}

		contents[entry] = string(data)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "read case output bundle")
	return contents[stdoutEntry], contents[stderrEntry], nil
}

// StoreReport persists a report that arrives either as inline text or as a
// path to an already-stored object. Inline text wins when both are set.
func StoreReport(
	ctx context.Context,
	s storage.Store,
	inline *string,
	existing *string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "StoreReport")
	defer span.End()

	if inline != nil {
		content := []byte(*inline)
		name, err := storage.Hashed(ctx, s, bytes.NewReader(content), int64(len(content)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upload inline report")
			return "", err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "stored inline report")
		return name, nil
	}

	if existing != nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "kept existing report path")
		return *existing, nil
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "no report supplied")
	return "", nil
}
