package dispatch

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/config"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/token"
	"github.com/openoj/judgehub/internal/types"
)

const defaultProbeTimeout = time.Second

// Coordinator validates uploaded code, picks a worker by load and hands the
// job off. The worker registry is injected at construction; there is no
// global state, so a config reload just builds a new Coordinator.
type Coordinator struct {
	db           *gorm.DB
	store        storage.Store
	broker       *token.Broker
	client       *http.Client
	workers      []config.Worker
	probeTimeout time.Duration
}

func NewCoordinator(
	db *gorm.DB,
	store storage.Store,
	broker *token.Broker,
	client *http.Client,
	cfg *config.Config,
) *Coordinator {
	probeTimeout := cfg.WorkerProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	return &Coordinator{
		db:           db,
		store:        store,
		broker:       broker,
		client:       client,
		workers:      cfg.Workers,
		probeTimeout: probeTimeout,
	}
}

// Dispatch sends a submission to the least-loaded worker. The submission is
// marked judging right before the hand-off; a refused hand-off moves it back
// to pending.
func (c *Coordinator) Dispatch(ctx context.Context, submission *models.Submission) error {
	ctx, span := tracer.Start(ctx, "Coordinator.Dispatch", trace.WithAttributes(
		attribute.String("submission.id", submission.ID.String()),
	))
	defer span.End()

	worker, err := c.selectWorker(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no worker to dispatch to")
		return err
	}

	tok, err := c.broker.Issue(ctx, submission.ID.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue dispatch token")
		return err
	}

	code, err := c.store.Get(ctx, submission.CodePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load submitted code")
		return err
	}
	defer code.Close()

	span.AddEvent("marking submission judging")
	err = c.db.WithContext(ctx).Model(submission).Updates(map[string]any{
		"status":    types.StatusJudging,
		"last_send": time.Now(),
	}).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mark submission judging")
		return err
	}

	outcome, err := c.submit(ctx, worker, submission, tok, code)
	if err == nil && outcome != types.SubmitOK {
		err = outcomeError(outcome)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker did not accept the job")
		c.revertToPending(ctx, submission)
		return err
	}

	span.SetAttributes(attribute.String("worker.name", worker.Name))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dispatched submission")
	return nil
}

// submit posts the job as multipart form data and decodes the immediate
// response into a tagged outcome. This is the only place worker response
// codes are interpreted.
func (c *Coordinator) submit(
	ctx context.Context,
	worker *config.Worker,
	submission *models.Submission,
	tok string,
	code io.Reader,
) (types.SubmitOutcome, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.submit", trace.WithAttributes(
		attribute.String("worker.name", worker.Name),
	))
	defer span.End()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeJobForm(form, submission, tok, code)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	url := fmt.Sprintf("%s/submit/%s", worker.URL, submission.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct submit request")
		return types.SubmitFailed, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+worker.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post job")
		return types.SubmitFailed, err
	}
	defer resp.Body.Close()

	outcome := decodeOutcome(resp.StatusCode)

	span.SetAttributes(
		attribute.Int("response.status", resp.StatusCode),
		attribute.String("outcome", outcome.String()),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "posted job")
	return outcome, nil
}

func writeJobForm(
	form *multipart.Writer,
	submission *models.Submission,
	tok string,
	code io.Reader,
) error {
	fields := map[string]string{
		"token":             tok,
		"problem_id":        submission.ProblemID.String(),
		"language":          submission.Language.String(),
		"kind":              string(submission.Kind),
		"project_mode":      strconv.FormatBool(submission.ProjectMode),
		"use_default_cases": strconv.FormatBool(submission.UseDefaultCases),
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return err
		}
	}

	part, err := form.CreateFormFile("code", "code.zip")
	if err != nil {
		return err
	}
	_, err = io.Copy(part, code)
	return err
}

func decodeOutcome(status int) types.SubmitOutcome {
	switch status {
	case http.StatusOK:
		return types.SubmitOK
	case http.StatusInternalServerError:
		return types.SubmitQueueFull
	case http.StatusBadRequest:
		return types.SubmitBadRequest
	case http.StatusForbidden:
		return types.SubmitInvalidToken
	default:
		return types.SubmitFailed
	}
}

func outcomeError(outcome types.SubmitOutcome) error {
	switch outcome {
	case types.SubmitQueueFull:
		return ErrQueueFull
	case types.SubmitBadRequest:
		return ErrBadRequest
	case types.SubmitInvalidToken:
		return ErrInvalidToken
	default:
		return ErrWorkerFailed
	}
}

func (c *Coordinator) revertToPending(ctx context.Context, submission *models.Submission) {
	err := c.db.WithContext(ctx).Model(submission).
		Update("status", types.StatusPending).Error
	if err != nil {
		logger.Logger.WarnContext(
			ctx,
			"failed to move submission back to pending",
			"submission", submission.ID,
			"error", err,
		)
	}
}
