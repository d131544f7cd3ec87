package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/types"
)

type SubmissionKind string

const (
	KindFormal SubmissionKind = "formal"
	KindTrial  SubmissionKind = "trial"
)

type Submission struct {
	Model
	ProblemID uuid.UUID
	UserID    uuid.UUID
	Kind      SubmissionKind `gorm:"type:text"`
	Language  types.Language `gorm:"type:text"`

	Status int `gorm:"default:-2"`
	Score  int `gorm:"default:-1"`

	Tasks      datatypes.JSONSlice[types.TaskResult]
	ExecTimeMS int64 `gorm:"column:exec_time_ms"`
	MemoryKB   int64 `gorm:"column:memory_kb"`

	CodePath    string // path in the object store
	BinaryPath  string // compiled artifact, reported by the worker; empty until then
	ProjectMode bool
	IPAddr      string

	CheckerSummary    string
	CheckerReportPath string

	AnalysisOutcome    string // skip, pass or fail; empty until reported
	AnalysisMessage    string
	AnalysisReportPath string

	ScorerMessage    string
	ScorerReportPath string
	ScorerBreakdown  datatypes.JSONType[map[string]int]

	// Trial submissions only.
	UseDefaultCases bool
	CustomInputPath string
	ExpiresAt       datatypes.Null[time.Time]

	// Set right before each hand-off to a worker. Cooldown checks for
	// rejudge and delete key off this, not CreatedAt.
	LastSend datatypes.Null[time.Time]
}

func (Submission) TableName() string {
	return "submission"
}

func (s Submission) GetID() uuid.UUID {
	return s.ID
}

func (s Submission) IsTrial() bool {
	return s.Kind == KindTrial
}

func (s Submission) Finished() bool {
	return s.Status >= types.StatusAccepted
}

// Paths of every blob owned by this submission besides the code itself.
// Used when wiping results for a rejudge.
func (s Submission) ResultPaths() []string {
	paths := make([]string, 0)
	for _, task := range s.Tasks {
		for _, c := range task.Cases {
			if c.OutputPath != "" {
				paths = append(paths, c.OutputPath)
			}
		}
	}
	for _, p := range []string{s.CheckerReportPath, s.AnalysisReportPath, s.ScorerReportPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Paths of every blob owned by this submission, code included.
func (s Submission) AllPaths() []string {
	paths := s.ResultPaths()
	if s.CodePath != "" {
		paths = append(paths, s.CodePath)
	}
	if s.CustomInputPath != "" {
		paths = append(paths, s.CustomInputPath)
	}
	if s.BinaryPath != "" {
		paths = append(paths, s.BinaryPath)
	}
	return paths
}

// Presigned url for the submitted code so graders can pull it without
// proxying the bytes through us.
func (s *Submission) GetCodeURL(
	ctx context.Context,
	store storage.Store,
	duration time.Duration,
) (string, error) {
	_, span := tracer.Start(ctx, "Submission.GetCodeURL")
	defer span.End()

	url, err := store.PresignedReadURL(ctx, s.CodePath, duration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make code url")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "generated code url")
	return url, nil
}
