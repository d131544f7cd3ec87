package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/response"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/types"
	"github.com/openoj/judgehub/internal/validator"
)

// PostCaseOutput stores a bundled case output a worker produced while
// judging. The blob name is the content hash; the worker references it in
// the result callback.
func (h *Handler) PostCaseOutput(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "PostCaseOutput")
	defer span.End()

	submission, ok := c.Get("submission").(*models.Submission)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("submission: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	blobName, err := h.storeArtifact(ctx, c, span, submission, validator.MaxStandardCodeSize)
	if err != nil {
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")

	return c.JSON(http.StatusOK, types.ArtifactStoredResponse{Path: blobName})
}

// PostBinary stores a compiled artifact for later download by graders. The
// blob is recorded on the submission so cleanup can find it.
func (h *Handler) PostBinary(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "PostBinary")
	defer span.End()

	submission, ok := c.Get("submission").(*models.Submission)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("submission: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	blobName, err := h.storeArtifact(ctx, c, span, submission, validator.MaxProjectCodeSize)
	if err != nil {
		return err
	}

	span.AddEvent("recording binary path")
	err = h.DB.WithContext(ctx).
		Model(submission).
		Update("binary_path", blobName).
		Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record binary path")
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")

	return c.JSON(http.StatusOK, types.ArtifactStoredResponse{Path: blobName})
}

func (h *Handler) storeArtifact(
	ctx context.Context,
	c echo.Context,
	span trace.Span,
	submission *models.Submission,
	maxSize int64,
) (string, error) {
	span.SetAttributes(attribute.String("submission.id", submission.ID.String()))

	span.AddEvent("reading artifact body")
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSize+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read request body")
		return "", response.InternalServerError
	}

	if int64(len(data)) > maxSize {
		span.SetStatus(codes.Ok, "artifact too large")
		span.RecordError(nil)
		return "", echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError(fmt.Sprintf("artifact exceeds %d bytes", maxSize)),
		)
	}

	span.AddEvent("uploading artifact")
	blobName, err := storage.Hashed(ctx, h.store, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		span.SetStatus(codes.Error, "failed to upload artifact")
		span.RecordError(err)
		return "", response.InternalServerError
	}

	span.SetAttributes(attribute.String("blob.name", blobName))
	return blobName, nil
}
