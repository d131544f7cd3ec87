package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openoj/judgehub/internal/hash"
	"github.com/openoj/judgehub/internal/logger"
)

// ErrConsistencyMismatch means the legacy and current copies of an object do
// not hash to the same value. Both copies are retained; resolving the
// divergence requires manual intervention.
var ErrConsistencyMismatch = errors.New("legacy and current object copies differ")

// Migrator drains a legacy store into the current one. Objects are copied
// first and only removed from the legacy store after a hash comparison of
// both copies succeeds.
type Migrator struct {
	legacy  Store
	current Store
	l       *slog.Logger
}

func NewMigrator(legacy, current Store) *Migrator {
	return &Migrator{
		legacy:  legacy,
		current: current,
		l:       logger.Logger.With("component", "storage-migrator"),
	}
}

// MigrateObject copies one object from the legacy store into the current
// store unless a current copy already exists. The legacy copy is left in
// place; see VerifyObject for the prune step.
func (m *Migrator) MigrateObject(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Migrator.MigrateObject", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	exists, err := m.current.Exists(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check current copy")
		return err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "current copy already present")
		return nil
	}

	reader, err := m.legacy.Get(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open legacy copy")
		return err
	}
	defer reader.Close()

	buf, err := io.ReadAll(reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read legacy copy")
		return err
	}

	err = m.current.Upload(ctx, bytes.NewReader(buf), int64(len(buf)), name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to current store")
		return err
	}

	m.l.InfoContext(ctx, "migrated object", "name", name, "size", len(buf))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "migrated object")
	return nil
}

// VerifyObject reads both copies of an object, compares their sha256 digests
// and deletes the legacy copy only when they match. On mismatch both copies
// are retained, a warning is logged and ErrConsistencyMismatch is returned.
// Data is never deleted on mismatch.
func (m *Migrator) VerifyObject(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Migrator.VerifyObject", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	legacySum, err := m.hashObject(ctx, m.legacy, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash legacy copy")
		return err
	}

	currentSum, err := m.hashObject(ctx, m.current, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash current copy")
		return err
	}

	span.SetAttributes(
		attribute.String("sum.legacy", legacySum),
		attribute.String("sum.current", currentSum),
	)

	if legacySum != currentSum {
		m.l.WarnContext(ctx, "object copies diverge, keeping both; manual intervention required",
			"name", name,
			"legacySum", legacySum,
			"currentSum", currentSum,
		)
		span.RecordError(ErrConsistencyMismatch)
		span.SetStatus(codes.Error, "object copies diverge")
		return ErrConsistencyMismatch
	}

	err = m.legacy.Delete(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prune legacy copy")
		return err
	}

	m.l.InfoContext(ctx, "pruned verified legacy copy", "name", name)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "verified and pruned")
	return nil
}

// MigrateAndVerify runs both steps for a batch of object names. Mismatches do
// not stop the batch; the returned count is the number of objects fully
// migrated and pruned, and the returned error joins everything that failed.
func (m *Migrator) MigrateAndVerify(ctx context.Context, names []string) (int, error) {
	ctx, span := tracer.Start(ctx, "Migrator.MigrateAndVerify", trace.WithAttributes(
		attribute.Int("count", len(names)),
	))
	defer span.End()

	var errs error
	done := 0
	for _, name := range names {
		if err := m.MigrateObject(ctx, name); err != nil {
			errs = errors.Join(errs, err)
			continue
		}

		if err := m.VerifyObject(ctx, name); err != nil {
			errs = errors.Join(errs, err)
			continue
		}

		done++
	}

	if errs != nil {
		span.RecordError(errs)
		span.SetStatus(codes.Error, "batch completed with failures")
		return done, errs
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "batch migrated")
	return done, nil
}

func (m *Migrator) hashObject(ctx context.Context, s Store, name string) (string, error) {
	reader, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return hash.Reader(ctx, reader)
}
