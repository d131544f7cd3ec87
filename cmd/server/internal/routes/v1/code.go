package v1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openoj/judgehub/cmd/server/internal/capability"
	"github.com/openoj/judgehub/cmd/server/internal/dispatch"
	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/response"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/types"
	"github.com/openoj/judgehub/internal/validator"
)

// UploadCode accepts the raw zip body for a pending submission, validates
// the archive before any network traffic and hands it to the dispatcher.
func (h *Handler) UploadCode(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UploadCode")
	defer span.End()

	db := h.DB.WithContext(ctx)

	span.AddEvent("received code upload request")

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
	if !set.Has(capability.Upload) {
		span.SetStatus(codes.Ok, "caller may not upload to this submission")
		span.RecordError(nil)
		return response.NotFoundError
	}

	if submission.Status != types.StatusPending || submission.CodePath != "" {
		span.SetStatus(codes.Ok, "submission already has code")
		span.RecordError(nil)
		return echo.NewHTTPError(
			http.StatusConflict,
			types.StringError("submission already has code"),
		)
	}

	maxSize := validator.MaxStandardCodeSize
	if submission.ProjectMode {
		maxSize = validator.MaxProjectCodeSize
	}

	span.AddEvent("reading archive body")
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSize+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read request body")
		return response.InternalServerError
	}

	span.AddEvent("validating archive")
	if submission.ProjectMode {
		err = dispatch.ValidateProjectArchive(ctx, bytes.NewReader(data), int64(len(data)))
	} else {
		err = dispatch.ValidateStandardArchive(
			ctx,
			bytes.NewReader(data),
			int64(len(data)),
			submission.Language,
		)
	}
	if err != nil {
		if errors.Is(err, dispatch.ErrValidation) {
			span.SetStatus(codes.Ok, "archive failed validation")
			span.RecordError(err)
			return echo.NewHTTPError(http.StatusBadRequest, types.StringError(err.Error()))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to validate archive")
		return response.InternalServerError
	}

	span.AddEvent("uploading archive")
	blobName, err := storage.Hashed(ctx, h.store, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		span.SetStatus(codes.Error, "failed to upload archive")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("blob.name", blobName))

	err = db.Model(submission).Updates(map[string]any{
		"code_path": blobName,
		"ip_addr":   c.RealIP(),
	}).Error
	if err != nil {
		span.SetStatus(codes.Error, "failed to record code path")
		span.RecordError(err)
		return response.InternalServerError
	}
	submission.CodePath = blobName

	span.AddEvent("dispatching submission")
	err = h.coordinator.Dispatch(ctx, submission)
	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		span.SetStatus(codes.Ok, "all judges busy, submission stays pending")
		span.RecordError(nil)
		return response.QueueFullError
	case errors.Is(err, dispatch.ErrNoWorker):
		span.SetStatus(codes.Ok, "no judge reachable, submission stays pending")
		span.RecordError(nil)
		return response.NoWorkerError
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")

	return c.JSON(http.StatusOK, types.SubmissionCreatedResponse{
		SubmissionID: submission.ID.String(),
		Status:       submission.Status,
	})
}
