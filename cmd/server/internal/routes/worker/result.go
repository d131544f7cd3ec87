package worker

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/response"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/types"
)

// PutResult ingests a worker's result callback. The per-dispatch token is
// burned on acceptance so a callback can never be replayed.
func (h *Handler) PutResult(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "PutResult")
	defer span.End()

	db := h.DB.WithContext(ctx)

	span.AddEvent("received result callback")

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
		attribute.String("auth.note", auth.Note),
		attribute.String("submission.id", submission.ID.String()),
	)

	var rdata types.ResultPayload

	span.AddEvent("parsing request body")
	err := c.Bind(&rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	err = c.Validate(rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	span.AddEvent("verifying dispatch token")
	valid, err := h.broker.Verify(ctx, submission.ID.String(), rdata.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to verify dispatch token")
		return response.InternalServerError
	}
	if !valid {
		logger.Logger.WarnContext(ctx, "result callback with bad dispatch token",
			"submission", submission.ID.String(),
			"key_note", auth.Note,
		)
		span.SetStatus(codes.Ok, "dispatch token rejected")
		span.RecordError(nil)
		return response.ForbiddenError
	}

	problem, err := models.ByID[models.Problem](ctx, db, submission.ProblemID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load problem")
		return response.InternalServerError
	}

	err = h.ingestor.ProcessResult(ctx, submission, problem, &rdata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ingest result")
		return response.InternalServerError
	}

	span.SetAttributes(attribute.Int("status", submission.Status))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")

	return c.JSON(http.StatusOK, types.SubmissionCreatedResponse{
		SubmissionID: submission.ID.String(),
		Status:       submission.Status,
	})
}
