package v1

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

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

func (h *Handler) CreateSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateSubmission")
	defer span.End()

	db := h.DB.WithContext(ctx)

	span.AddEvent("received create submission request")

	auth, ok := c.Get("auth").(*models.Auth)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("auth: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	problem, ok := c.Get("problem").(*models.Problem)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("problem: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	requestTime, ok := c.Get("time").(time.Time)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("time: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("auth.id", auth.ID.String()),
		attribute.String("problem.id", problem.ID.String()),
		attribute.Int64("request.timestamp_ms", requestTime.UnixMilli()),
	)

	type requestData struct {
		Language        string  `json:"language"          validate:"required"`
		Kind            string  `json:"kind"              validate:"required,oneof=formal trial"`
		CustomInput     *string `json:"custom_input,omitempty"`
		ProjectMode     bool    `json:"project_mode"`
		UseDefaultCases bool    `json:"use_default_cases"`
	}
	var rdata requestData

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

	language, err := types.ParseLanguage(rdata.Language)
	if err != nil {
		span.SetStatus(codes.Ok, "unsupported language")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.Error{Message: "validation error", Fields: &map[string]string{
				"language": "must be a supported language",
			}},
		)
	}

	kind := models.SubmissionKind(rdata.Kind)

	if kind == models.KindFormal {
		span.AddEvent("checking daily quota")
		stats, err := models.StatsForUser(ctx, db, auth.ID)
		if err != nil {
			span.SetStatus(codes.Error, "failed to load user stats")
			span.RecordError(err)
			return response.InternalServerError
		}

		quota := problem.DailyQuota
		if quota <= 0 {
			quota = h.config.DailySubmitQuota
		}
		if quota > 0 && stats.SubmitsToday >= quota {
			span.AddEvent("daily quota exhausted", trace.WithAttributes(
				attribute.Int("quota", quota),
				attribute.Int("submits_today", stats.SubmitsToday),
			))
			span.SetStatus(codes.Ok, "daily quota exhausted")
			span.RecordError(nil)
			return response.QuotaExceededError
		}
	}

	submission := models.Submission{
		ProblemID:       problem.ID,
		UserID:          auth.ID,
		Kind:            kind,
		Language:        language,
		Status:          types.StatusPending,
		Score:           -1,
		ProjectMode:     rdata.ProjectMode,
		UseDefaultCases: rdata.UseDefaultCases,
		IPAddr:          c.RealIP(),
	}

	if kind == models.KindTrial {
		submission.ExpiresAt = models.NewNullFromData(requestTime.Add(h.config.TrialTTL))

		if rdata.CustomInput != nil {
			span.AddEvent("decoding custom input base64")
			inputData, err := base64.StdEncoding.DecodeString(*rdata.CustomInput)
			if err != nil {
				span.SetStatus(codes.Ok, "failed to decode custom input")
				span.RecordError(err)
				return echo.NewHTTPError(
					http.StatusBadRequest,
					types.Error{Message: "failed to decode base64", Fields: &map[string]string{
						"custom_input": "must be valid base64",
					}},
				)
			}

			if !validator.ValidateStandardCodeSize(int64(len(inputData))) {
				span.SetStatus(codes.Ok, "custom input too large")
				span.RecordError(nil)
				return echo.NewHTTPError(
					http.StatusBadRequest,
					types.Error{Message: "validation error", Fields: &map[string]string{
						"custom_input": "must be <= 10mb",
					}},
				)
			}

			span.AddEvent("uploading custom input")
			blobName, err := storage.Hashed(
				ctx,
				h.store,
				bytes.NewReader(inputData),
				int64(len(inputData)),
			)
			if err != nil {
				span.SetStatus(codes.Error, "failed to upload custom input")
				span.RecordError(err)
				return response.InternalServerError
			}
			submission.CustomInputPath = blobName
		}
	}

	span.AddEvent("inserting into database")
	err = db.Create(&submission).Error
	if err != nil {
		span.SetStatus(codes.Error, "failed to insert")
		span.RecordError(err)
		return response.InternalServerError
	}

	if kind == models.KindFormal {
		err = models.CountSubmit(ctx, db, auth.ID)
		if err != nil {
			span.SetStatus(codes.Error, "failed to count submit")
			span.RecordError(err)
			return response.InternalServerError
		}
	}

	span.SetAttributes(attribute.String("submission.id", submission.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")

	return c.JSON(http.StatusOK, types.SubmissionCreatedResponse{
		SubmissionID: submission.ID.String(),
		Status:       submission.Status,
	})
}
