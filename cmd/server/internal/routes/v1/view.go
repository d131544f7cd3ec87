package v1

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openoj/judgehub/cmd/server/internal/capability"
	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/judge"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/response"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/types"
)

const presignDuration = 15 * time.Minute

func hasStoredOutput(submission *models.Submission) bool {
	for _, task := range submission.Tasks {
		for _, c := range task.Cases {
			if c.OutputPath != "" {
				return true
			}
		}
	}
	return false
}

func (h *Handler) GetSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetSubmission")
	defer span.End()

	db := h.DB.WithContext(ctx)

	auth, ok := c.Get("auth").(*models.Auth)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("auth: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	submission, ok := c.Get("submission").(*models.Submission)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("submission: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("auth.id", auth.ID.String()),
		attribute.String("submission.id", submission.ID.String()),
	)

	problem, err := models.ByID[models.Problem](ctx, db, submission.ProblemID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load problem")
		return response.InternalServerError
	}

	set, err := h.capabilities.For(ctx, auth.ID, submission, problem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compute capabilities")
		return response.InternalServerError
	}
	span.SetAttributes(attribute.String("capabilities", set.String()))

	if !set.Has(capability.View) {
		span.SetStatus(codes.Ok, "caller may not view this submission")
		span.RecordError(nil)
		return response.NotFoundError
	}

	resp := types.SubmissionResponse{
		SubmissionID:    submission.ID.String(),
		Kind:            string(submission.Kind),
		Language:        submission.Language.String(),
		Status:          submission.Status,
		Score:           submission.Score,
		ExecTimeMS:      submission.ExecTimeMS,
		MemoryKB:        submission.MemoryKB,
		Tasks:           submission.Tasks,
		CheckerSummary:  submission.CheckerSummary,
		AnalysisOutcome: submission.AnalysisOutcome,
		AnalysisMessage: submission.AnalysisMessage,
		ScorerMessage:   submission.ScorerMessage,
		ScorerBreakdown: submission.ScorerBreakdown.Data(),
	}

	if set.Has(capability.ViewOutput) && submission.Finished() {
		outputs, err := judge.CollectOutputs(ctx, h.store, submission)
		if err != nil {
			if errors.Is(err, judge.ErrNoArtifacts) && hasStoredOutput(submission) {
				span.SetStatus(codes.Ok, "no case output readable")
				span.RecordError(err)
				return response.NotFoundError
			}
			if !errors.Is(err, judge.ErrNoArtifacts) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to collect case outputs")
				return response.InternalServerError
			}
		}

		views := make([]types.CaseOutputView, 0, len(outputs))
		for _, out := range outputs {
			view := types.CaseOutputView{
				Task:   out.Task,
				Case:   out.Case,
				Stdout: out.Stdout,
				Stderr: out.Stderr,
			}

			bundlePath := submission.Tasks[out.Task].Cases[out.Case].OutputPath
			url, err := h.store.PresignedReadURL(ctx, bundlePath, presignDuration)
			if err != nil {
				// the decoded text is still served
				logger.Logger.WarnContext(ctx, "failed to presign case output",
					"submission", submission.ID.String(),
					"path", bundlePath,
					"error", err,
				)
			} else {
				view.OutputURL = url
			}

			views = append(views, view)
		}
		resp.Outputs = views
	}

	if set.Has(capability.Grade) && submission.CodePath != "" {
		url, err := submission.GetCodeURL(ctx, h.store, presignDuration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to presign code")
			return response.InternalServerError
		}
		resp.CodeURL = url
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, resp)
}
