package judge

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/archive"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
)

// ErrNoArtifacts means not a single case output could be read back.
var ErrNoArtifacts = errors.New("no case output available")

type CaseOutput struct {
	Task   int    `json:"task"`
	Case   int    `json:"case"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// CollectOutputs reads back the stored per-case output bundles for display.
// A corrupt or missing bundle skips that case; the call only fails when
// nothing at all could be read.
func CollectOutputs(
	ctx context.Context,
	store storage.Store,
	submission *models.Submission,
) ([]CaseOutput, error) {
	ctx, span := tracer.Start(ctx, "CollectOutputs", trace.WithAttributes(
		attribute.String("submission.id", submission.ID.String()),
	))
	defer span.End()

	outputs := make([]CaseOutput, 0)

	for taskIndex, task := range submission.Tasks {
		for caseIndex, c := range task.Cases {
			if c.OutputPath == "" {
				continue
			}

			stdout, stderr, err := archive.ReadCaseOutput(ctx, store, c.OutputPath)
			if err != nil {
				logger.Logger.WarnContext(
					ctx,
					"skipping unreadable case output",
					"submission", submission.ID,
					"task", taskIndex,
					"case", caseIndex,
					"error", err,
				)
				span.RecordError(err)
				continue
			}

			outputs = append(outputs, CaseOutput{
				Task:   taskIndex,
				Case:   caseIndex,
				Stdout: stdout,
				Stderr: stderr,
			})
		}
	}

	if len(outputs) == 0 {
		span.RecordError(ErrNoArtifacts)
		span.SetStatus(codes.Error, "no case output could be read")
		return nil, ErrNoArtifacts
	}

	span.SetAttributes(attribute.Int("outputs", len(outputs)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "collected case outputs")
	return outputs, nil
}
