package dispatch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openoj/judgehub/internal/types"
	"github.com/openoj/judgehub/internal/validator"
)

// ErrValidation marks rejections decided before any worker contact. The
// submission never enters the judging state on this path.
var ErrValidation = errors.New("code validation failed")

var pdfMagic = []byte("%PDF-")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Total declared uncompressed size of the archive, saturating instead of
// wrapping when headers are absurd.
func uncompressedSize(archive *zip.Reader) int64 {
	var total uint64
	for _, f := range archive.File {
		total += f.UncompressedSize64
		if total > math.MaxInt64 || total < f.UncompressedSize64 {
			return math.MaxInt64
		}
	}
	return int64(total)
}

// ValidateStandardArchive accepts a standard-mode code archive: at most 10MB,
// a readable zip, and exactly one entry named main.<ext> for the declared
// language. Handwritten PDF entries must carry the PDF magic.
func ValidateStandardArchive(
	ctx context.Context,
	r io.ReaderAt,
	size int64,
	language types.Language,
) error {
	_, span := tracer.Start(ctx, "ValidateStandardArchive", trace.WithAttributes(
		attribute.Int64("size", size),
		attribute.String("language", language.String()),
	))
	defer span.End()

	if !validator.ValidateStandardCodeSize(size) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "archive too large")
		return validationError("archive exceeds %d bytes", validator.MaxStandardCodeSize)
	}

	archive, err := zip.NewReader(r, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "unreadable archive")
		return validationError("archive is not a readable zip")
	}

	// The limit binds what the worker will inflate, not the wire size.
	if !validator.ValidateStandardCodeSize(uncompressedSize(archive)) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "archive inflates past the limit")
		return validationError(
			"archive exceeds %d bytes uncompressed",
			validator.MaxStandardCodeSize,
		)
	}

	entryName := "main" + language.Extension()

	var entry *zip.File
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) != entryName {
			continue
		}
		if entry != nil {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "duplicate entry")
			return validationError("archive has more than one %s", entryName)
		}
		entry = f
	}

	if entry == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "missing entry")
		return validationError("archive is missing %s", entryName)
	}

	if language == types.LanguagePDF {
		if err := checkPDFMagic(entry); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Ok, "bad pdf entry")
			return err
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "validated standard archive")
	return nil
}

func checkPDFMagic(entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return validationError("cannot open %s", entry.Name)
	}
	defer rc.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(rc, head); err != nil {
		return validationError("%s is not a PDF", entry.Name)
	}

	if !bytes.Equal(head, pdfMagic) {
		return validationError("%s is not a PDF", entry.Name)
	}

	return nil
}

// ValidateProjectArchive accepts a project-mode archive: at most 1GB and a
// readable zip. Layout inside the archive is the worker's business.
func ValidateProjectArchive(ctx context.Context, r io.ReaderAt, size int64) error {
	_, span := tracer.Start(ctx, "ValidateProjectArchive", trace.WithAttributes(
		attribute.Int64("size", size),
	))
	defer span.End()

	if !validator.ValidateProjectCodeSize(size) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "archive too large")
		return validationError("archive exceeds %d bytes", validator.MaxProjectCodeSize)
	}

	archive, err := zip.NewReader(r, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "unreadable archive")
		return validationError("archive is not a readable zip")
	}

	if !validator.ValidateProjectCodeSize(uncompressedSize(archive)) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "archive inflates past the limit")
		return validationError(
			"archive exceeds %d bytes uncompressed",
			validator.MaxProjectCodeSize,
		)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "validated project archive")
	return nil
}
