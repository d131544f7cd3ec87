package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/dispatch"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/types"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/cmd/server/internal/lifecycle")

// ErrCooldown means the submission may still be in flight on a worker and
// the requested action is refused for now.
var ErrCooldown = errors.New("submission may still be in flight")

const (
	// Past this, a pending or judging submission is considered stale and a
	// rejudge may clobber it.
	rejudgeCooldown = 5 * time.Minute
	// Deletes wait longer: losing the row while a callback is in flight
	// strands the worker's result.
	deleteCooldown = 10 * time.Minute
)

// Manager owns rejudge and delete. The cooldown checks are best-effort
// guards against clobbering in-flight work, not transactional locks.
type Manager struct {
	db          *gorm.DB
	store       storage.Store
	coordinator *dispatch.Coordinator
}

func NewManager(db *gorm.DB, store storage.Store, coordinator *dispatch.Coordinator) *Manager {
	return &Manager{db: db, store: store, coordinator: coordinator}
}

// Rejudge wipes a submission's results and sends it through dispatch again.
// Refused while the previous attempt may still be running.
func (m *Manager) Rejudge(ctx context.Context, submission *models.Submission) error {
	ctx, span := tracer.Start(ctx, "Manager.Rejudge", trace.WithAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.Int("submission.status", submission.Status),
	))
	defer span.End()

	now := time.Now()

	if submission.Status == types.StatusPending &&
		now.Sub(submission.CreatedAt) < rejudgeCooldown {
		span.RecordError(ErrCooldown)
		span.SetStatus(codes.Ok, "pending submission inside cooldown")
		return ErrCooldown
	}

	if submission.Status == types.StatusJudging {
		if submission.LastSend.Valid && now.Sub(submission.LastSend.V) < rejudgeCooldown {
			span.RecordError(ErrCooldown)
			span.SetStatus(codes.Ok, "judging submission inside cooldown")
			return ErrCooldown
		}

		logger.Logger.WarnContext(
			ctx,
			"rejudging a stale judging submission, previous dispatch is abandoned",
			"submission", submission.ID,
		)
	}

	m.removeBlobs(ctx, submission.ResultPaths())

	span.AddEvent("resetting submission record")
	err := m.db.WithContext(ctx).Model(submission).Updates(map[string]any{
		"tasks":                datatypes.NewJSONSlice([]types.TaskResult{}),
		"status":               types.StatusPending,
		"score":                -1,
		"exec_time_ms":         0,
		"memory_kb":            0,
		"checker_summary":      "",
		"checker_report_path":  "",
		"analysis_outcome":     "",
		"analysis_message":     "",
		"analysis_report_path": "",
		"scorer_message":       "",
		"scorer_report_path":   "",
		"scorer_breakdown":     nil,
	}).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reset submission")
		return err
	}

	submission.Status = types.StatusPending
	submission.Tasks = datatypes.NewJSONSlice([]types.TaskResult{})

	if err := m.coordinator.Dispatch(ctx, submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to redispatch submission")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "rejudged submission")
	return nil
}

// Delete removes a submission and its blobs. Blob removal is best effort;
// the record goes away even when the store misbehaves.
func (m *Manager) Delete(ctx context.Context, submission *models.Submission) error {
	ctx, span := tracer.Start(ctx, "Manager.Delete", trace.WithAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.Int("submission.status", submission.Status),
	))
	defer span.End()

	if submission.Status == types.StatusJudging &&
		submission.LastSend.Valid &&
		time.Since(submission.LastSend.V) < deleteCooldown {
		span.RecordError(ErrCooldown)
		span.SetStatus(codes.Ok, "judging submission inside delete cooldown")
		return ErrCooldown
	}

	m.removeBlobs(ctx, submission.AllPaths())

	span.AddEvent("deleting submission record")
	err := m.db.WithContext(ctx).Delete(submission).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete submission record")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "deleted submission")
	return nil
}

func (m *Manager) removeBlobs(ctx context.Context, paths []string) {
	ctx, span := tracer.Start(ctx, "Manager.removeBlobs", trace.WithAttributes(
		attribute.Int("paths", len(paths)),
	))
	defer span.End()

	for _, path := range paths {
		if err := m.store.Delete(ctx, path); err != nil {
			logger.Logger.WarnContext(
				ctx,
				"failed to remove blob, continuing",
				"path", path,
				"error", err,
			)
			span.RecordError(err)
		}
	}

	span.SetStatus(codes.Ok, "removed blobs")
}
