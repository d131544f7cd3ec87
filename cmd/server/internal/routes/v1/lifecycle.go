package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openoj/judgehub/cmd/server/internal/capability"
	"github.com/openoj/judgehub/cmd/server/internal/dispatch"
	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/lifecycle"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/response"
	"github.com/openoj/judgehub/internal/types"
)

// authorize loads the problem and computes the caller's capability set for
// the submission routes that are gated per-capability rather than per-role.
func (h *Handler) authorize(
	c echo.Context,
	need capability.Set,
) (*models.Submission, error) {
	ctx := c.Request().Context()

	auth, ok := c.Get("auth").(*models.Auth)
	if !ok {
		return nil, srverr.ErrTypeAssertMismatch
	}

	submission, ok := c.Get("submission").(*models.Submission)
	if !ok {
		return nil, srverr.ErrTypeAssertMismatch
	}

	problem, err := models.ByID[models.Problem](ctx, h.DB.WithContext(ctx), submission.ProblemID)
	if err != nil {
		return nil, err
	}

	set, err := h.capabilities.For(ctx, auth.ID, submission, problem)
	if err != nil {
		return nil, err
	}
	if !set.Has(need) {
		return nil, echo.ErrNotFound
	}

	return submission, nil
}

func (h *Handler) RejudgeSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RejudgeSubmission")
	defer span.End()

	submission, err := h.authorize(c, capability.Rejudge)
	if err != nil {
		if errors.Is(err, echo.ErrNotFound) {
			span.SetStatus(codes.Ok, "caller may not rejudge this submission")
			span.RecordError(nil)
			return response.NotFoundError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("authorize: %s", err))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("submission.id", submission.ID.String()))

	err = h.lifecycle.Rejudge(ctx, submission)
	switch {
	case errors.Is(err, lifecycle.ErrCooldown):
		span.SetStatus(codes.Ok, "rejudge refused by cooldown")
		span.RecordError(nil)
		return response.CooldownError
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
		span.SetStatus(codes.Error, "rejudge failed")
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.SubmissionCreatedResponse{
		SubmissionID: submission.ID.String(),
		Status:       submission.Status,
	})
}

func (h *Handler) DeleteSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeleteSubmission")
	defer span.End()

	submission, err := h.authorize(c, capability.Grade)
	if err != nil {
		if errors.Is(err, echo.ErrNotFound) {
			span.SetStatus(codes.Ok, "caller may not delete this submission")
			span.RecordError(nil)
			return response.NotFoundError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("authorize: %s", err))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("submission.id", submission.ID.String()))

	err = h.lifecycle.Delete(ctx, submission)
	switch {
	case errors.Is(err, lifecycle.ErrCooldown):
		span.SetStatus(codes.Ok, "delete refused while possibly in flight")
		span.RecordError(nil)
		return response.CooldownError
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.NoContent(http.StatusOK)
}
