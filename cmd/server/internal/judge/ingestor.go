package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/archive"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/types"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/cmd/server/internal/judge")

// Ingestor turns worker callback payloads into the durable submission
// record. Idempotency is the token broker's job: one accepted callback per
// dispatch reaches this code.
type Ingestor struct {
	db    *gorm.DB
	store storage.Store
}

func NewIngestor(db *gorm.DB, store storage.Store) *Ingestor {
	return &Ingestor{db: db, store: store}
}

// computed is everything a callback payload reduces to before it is written
// to the submission row.
type computed struct {
	Tasks              []types.TaskResult
	Status             int
	Score              int
	ExecTimeMS         int64
	MemoryKB           int64
	CheckerSummary     string
	CheckerReportPath  string
	AnalysisOutcome    string
	AnalysisMessage    string
	AnalysisReportPath string
	ScorerMessage      string
	ScorerReportPath   string
	ScorerBreakdown    map[string]int
}

// ProcessResult aggregates a callback payload, persists the outcome and runs
// the variant-specific bookkeeping hook.
func (i *Ingestor) ProcessResult(
	ctx context.Context,
	submission *models.Submission,
	problem *models.Problem,
	payload *types.ResultPayload,
) error {
	ctx, span := tracer.Start(ctx, "Ingestor.ProcessResult", trace.WithAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.String("submission.kind", string(submission.Kind)),
	))
	defer span.End()

	result, err := i.aggregate(ctx, submission, problem, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to aggregate result payload")
		return err
	}

	updates := map[string]any{
		"tasks":                datatypes.NewJSONSlice(result.Tasks),
		"status":               result.Status,
		"score":                result.Score,
		"exec_time_ms":         result.ExecTimeMS,
		"memory_kb":            result.MemoryKB,
		"checker_summary":      result.CheckerSummary,
		"checker_report_path":  result.CheckerReportPath,
		"analysis_outcome":     result.AnalysisOutcome,
		"analysis_message":     result.AnalysisMessage,
		"analysis_report_path": result.AnalysisReportPath,
		"scorer_message":       result.ScorerMessage,
		"scorer_report_path":   result.ScorerReportPath,
	}
	if result.ScorerBreakdown != nil {
		updates["scorer_breakdown"] = datatypes.NewJSONType(result.ScorerBreakdown)
	}

	span.AddEvent("writing judged submission")
	err = i.db.WithContext(ctx).Model(submission).Updates(updates).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist judged submission")
		return err
	}

	previousStatus := submission.Status
	submission.Status = result.Status
	submission.Score = result.Score
	submission.Tasks = datatypes.NewJSONSlice(result.Tasks)

	if err := i.finishJudging(ctx, submission, problem, previousStatus); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to run post-judging hook")
		return err
	}

	span.SetAttributes(
		attribute.Int("status", result.Status),
		attribute.Int("score", result.Score),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "processed result")
	return nil
}

func (i *Ingestor) aggregate(
	ctx context.Context,
	submission *models.Submission,
	problem *models.Problem,
	payload *types.ResultPayload,
) (*computed, error) {
	ctx, span := tracer.Start(ctx, "Ingestor.aggregate")
	defer span.End()

	result := &computed{
		Tasks:  make([]types.TaskResult, 0, len(payload.Tasks)),
		Status: types.StatusUnknown,
	}
	if len(payload.Tasks) == 0 {
		result.Status = types.StatusAccepted
	}

	for index, wireCases := range payload.Tasks {
		task, err := i.aggregateTask(ctx, submission, problem, index, wireCases)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to aggregate task")
			return nil, err
		}

		result.Tasks = append(result.Tasks, *task)

		result.Status = max(result.Status, task.Status)
		result.ExecTimeMS = max(result.ExecTimeMS, task.ExecTimeMS)
		result.MemoryKB = max(result.MemoryKB, task.MemoryKB)
		result.Score += task.Score
	}

	if payload.Scoring != nil {
		if err := i.applyScoring(ctx, result, payload.Scoring); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to apply scoring payload")
			return nil, err
		}
	}

	// An explicit override from a custom scorer or checker always wins.
	if payload.StatusOverride != nil {
		span.AddEvent("applying status override", trace.WithAttributes(
			attribute.Int("status", *payload.StatusOverride),
		))
		result.Status = *payload.StatusOverride
	}

	if payload.Analysis != nil {
		if err := i.applyAnalysis(ctx, result, payload.Analysis); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to apply analysis payload")
			return nil, err
		}
	}

	if payload.Checker != nil {
		if err := i.applyChecker(ctx, result, payload.Checker); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to apply checker payload")
			return nil, err
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "aggregated result payload")
	return result, nil
}

func (i *Ingestor) aggregateTask(
	ctx context.Context,
	submission *models.Submission,
	problem *models.Problem,
	index int,
	wireCases []types.CaseWire,
) (*types.TaskResult, error) {
	ctx, span := tracer.Start(ctx, "Ingestor.aggregateTask", trace.WithAttributes(
		attribute.Int("task.index", index),
		attribute.Int("task.cases", len(wireCases)),
	))
	defer span.End()

	task := types.TaskResult{
		Cases: make([]types.CaseResult, 0, len(wireCases)),
		// True max over case statuses; StatusUnknown is below every real
		// code, so a lone unrecognized case surfaces as unknown.
		Status: types.StatusUnknown,
	}
	if len(wireCases) == 0 {
		task.Status = types.StatusAccepted
	}

	for _, wire := range wireCases {
		status, ok := types.StatusFromWorker(wire.Status)
		if !ok {
			logger.Logger.ErrorContext(
				ctx,
				"unrecognized worker status",
				"submission", submission.ID,
				"status", wire.Status,
			)
		}

		stdout, stderr := caseOutput(ctx, submission, wire)

		outputPath, err := archive.BundleCaseOutput(ctx, i.store, stdout, stderr)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to store case output")
			return nil, err
		}

		task.Cases = append(task.Cases, types.CaseResult{
			OutputPath: outputPath,
			Status:     status,
			ExecTimeMS: wire.ExecTimeMS,
			MemoryKB:   wire.MemoryKB,
		})

		task.Status = max(task.Status, status)
		task.ExecTimeMS = max(task.ExecTimeMS, wire.ExecTimeMS)
		task.MemoryKB = max(task.MemoryKB, wire.MemoryKB)
	}

	task.Score = taskScore(submission, problem, index, task.Status)

	span.SetAttributes(
		attribute.Int("task.status", task.Status),
		attribute.Int("task.score", task.Score),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "aggregated task")
	return &task, nil
}

func caseOutput(
	ctx context.Context,
	submission *models.Submission,
	wire types.CaseWire,
) (string, string) {
	stdout, stderr := "", ""
	if wire.Stdout != nil {
		stdout = *wire.Stdout
	} else {
		logger.Logger.ErrorContext(
			ctx,
			"case is missing stdout, treating as empty",
			"submission", submission.ID,
		)
	}
	if wire.Stderr != nil {
		stderr = *wire.Stderr
	} else {
		logger.Logger.ErrorContext(
			ctx,
			"case is missing stderr, treating as empty",
			"submission", submission.ID,
		)
	}
	return stdout, stderr
}

// taskScore awards the problem's per-task points only to formal submissions
// whose task is fully accepted. Trials always score 0; for them pass/fail
// per case is what matters, not points.
func taskScore(
	submission *models.Submission,
	problem *models.Problem,
	index int,
	status int,
) int {
	if submission.IsTrial() {
		return 0
	}
	if status != types.StatusAccepted {
		return 0
	}
	if index >= len(problem.TaskPoints) {
		return 0
	}
	return problem.TaskPoints[index]
}

func (i *Ingestor) applyScoring(
	ctx context.Context,
	result *computed,
	scoring *types.ScoringWire,
) error {
	ctx, span := tracer.Start(ctx, "Ingestor.applyScoring")
	defer span.End()

	if scoring.Score != nil {
		span.AddEvent("replacing computed score", trace.WithAttributes(
			attribute.Int("score", *scoring.Score),
		))
		result.Score = *scoring.Score
	}

	reportPath, err := archive.StoreReport(ctx, i.store, scoring.Report, scoring.ReportPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store scorer report")
		return err
	}

	result.ScorerMessage = scoring.Message
	result.ScorerReportPath = reportPath
	result.ScorerBreakdown = scoring.Breakdown

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied scoring payload")
	return nil
}

func (i *Ingestor) applyAnalysis(
	ctx context.Context,
	result *computed,
	analysis *types.AnalysisWire,
) error {
	ctx, span := tracer.Start(ctx, "Ingestor.applyAnalysis", trace.WithAttributes(
		attribute.String("outcome", analysis.Outcome),
	))
	defer span.End()

	reportPath, err := archive.StoreReport(ctx, i.store, analysis.Report, analysis.ReportPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store analysis report")
		return err
	}

	// skip still stores message and report, it just records no verdict.
	result.AnalysisOutcome = analysis.Outcome
	result.AnalysisMessage = analysis.Message
	result.AnalysisReportPath = reportPath

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied analysis payload")
	return nil
}

func (i *Ingestor) applyChecker(
	ctx context.Context,
	result *computed,
	checker *types.CheckerWire,
) error {
	ctx, span := tracer.Start(ctx, "Ingestor.applyChecker", trace.WithAttributes(
		attribute.Int("checker.cases", len(checker.Cases)),
	))
	defer span.End()

	parts := make([]string, 0, len(checker.Cases))
	for _, entry := range checker.Cases {
		part := fmt.Sprintf("case %d: %s", entry.Case, entry.Status)
		if entry.Message != "" {
			part += " (" + entry.Message + ")"
		}
		parts = append(parts, part)
	}

	reportPath, err := archive.StoreReport(ctx, i.store, checker.Report, checker.ReportPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store checker report")
		return err
	}

	result.CheckerSummary = strings.Join(parts, "\n")
	result.CheckerReportPath = reportPath

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied checker payload")
	return nil
}

// finishJudging runs the variant-specific bookkeeping after the record is
// written. Formal submissions feed the grading aggregates; trials only bump
// their counter and never touch grading state.
func (i *Ingestor) finishJudging(
	ctx context.Context,
	submission *models.Submission,
	problem *models.Problem,
	previousStatus int,
) error {
	ctx, span := tracer.Start(ctx, "Ingestor.finishJudging", trace.WithAttributes(
		attribute.String("submission.kind", string(submission.Kind)),
	))
	defer span.End()

	if submission.IsTrial() {
		if err := models.CountTrial(ctx, i.db, submission.UserID, submission.ProblemID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to count trial")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "counted trial")
		return nil
	}

	// Only the first transition to accepted counts; rejudging an already
	// accepted submission must not inflate the total.
	if submission.Status == types.StatusAccepted && previousStatus != types.StatusAccepted {
		if err := models.CountAccepted(ctx, i.db, submission.UserID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to count accepted")
			return err
		}
	}

	score := lateAdjustedScore(submission, problem, time.Now())
	err := models.RecordAssignmentScore(
		ctx,
		i.db,
		problem.GroupID,
		problem.ID,
		submission.UserID,
		score,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record assignment score")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "finished judging bookkeeping")
	return nil
}

// lateAdjustedScore applies the problem's deadline penalty to a formal
// score. The submission's creation time decides lateness, not when the
// worker got around to calling back.
func lateAdjustedScore(
	submission *models.Submission,
	problem *models.Problem,
	now time.Time,
) int {
	at := submission.CreatedAt
	if at.IsZero() {
		at = now
	}

	if submission.Score <= 0 {
		return max(submission.Score, 0)
	}

	return int(float64(submission.Score) * problem.ScoreFactorAt(at))
}
