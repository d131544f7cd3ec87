package lifecycle

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/logger"
)

const (
	reaperInterval = time.Minute
	reaperBatch    = 100
)

// RunReaper deletes expired trial submissions until the context is
// cancelled. Postgres has no TTL index, so expiry is swept periodically.
func (m *Manager) RunReaper(ctx context.Context) error {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.reapExpiredTrials(ctx); err != nil {
				logger.Logger.ErrorContext(ctx, "trial reaper sweep failed", "error", err)
			}
		}
	}
}

func (m *Manager) reapExpiredTrials(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Manager.reapExpiredTrials")
	defer span.End()

	db := m.db.WithContext(ctx)

	var expired []models.Submission
	err := db.
		Where("kind = ? AND expires_at IS NOT NULL AND expires_at < ?", models.KindTrial, time.Now()).
		Limit(reaperBatch).
		Find(&expired).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list expired trials")
		return err
	}

	for i := range expired {
		submission := &expired[i]

		m.removeBlobs(ctx, submission.AllPaths())

		if err := db.Delete(submission).Error; err != nil {
			logger.Logger.WarnContext(
				ctx,
				"failed to delete expired trial, will retry next sweep",
				"submission", submission.ID,
				"error", err,
			)
			span.RecordError(err)
		}
	}

	span.SetAttributes(attribute.Int("reaped", len(expired)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "swept expired trials")
	return nil
}
