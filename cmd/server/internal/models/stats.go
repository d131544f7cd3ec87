package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStats counts a user's formal submissions for the current day plus
// lifetime accepted solutions. The day counter resets lazily: whoever reads
// a stale row first rolls it over. Concurrent readers may both see the
// fresh counter, which is acceptable for quota purposes.
type UserStats struct {
	Model
	UserID uuid.UUID `gorm:"uniqueIndex"`

	Day           time.Time
	SubmitsToday  int
	AcceptedTotal int
}

func (UserStats) TableName() string {
	return "user_stats"
}

func (s UserStats) GetID() uuid.UUID {
	return s.ID
}

func dayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Fetches the user's stats row, creating it when absent and rolling the
// day counter over when the stored day is stale.
func StatsForUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*UserStats, error) {
	ctx, span := tracer.Start(ctx, "StatsForUser")
	defer span.End()

	span.SetAttributes(attribute.String("userID", userID.String()))

	db = db.WithContext(ctx)

	stats := UserStats{UserID: userID, Day: dayOf(time.Now())}
	err := db.Where("user_id = ?", userID).FirstOrCreate(&stats).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch user stats")
		return nil, fmt.Errorf("failed to fetch user stats: %w", err)
	}

	today := dayOf(time.Now())
	if !stats.Day.Equal(today) {
		stats.Day = today
		stats.SubmitsToday = 0
		err = db.Model(&stats).
			Updates(map[string]any{"day": today, "submits_today": 0}).Error
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to roll over user stats")
			return nil, fmt.Errorf("failed to roll over user stats: %w", err)
		}
	}

	return &stats, nil
}

// Bumps today's submission counter.
func CountSubmit(ctx context.Context, db *gorm.DB, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "CountSubmit")
	defer span.End()

	stats, err := StatsForUser(ctx, db, userID)
	if err != nil {
		return err
	}

	db = db.WithContext(ctx)

	err = db.Model(stats).Update("submits_today", gorm.Expr("submits_today + 1")).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count submit")
		return fmt.Errorf("failed to count submit: %w", err)
	}

	return nil
}

// Bumps the lifetime accepted counter.
func CountAccepted(ctx context.Context, db *gorm.DB, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "CountAccepted")
	defer span.End()

	stats, err := StatsForUser(ctx, db, userID)
	if err != nil {
		return err
	}

	db = db.WithContext(ctx)

	err = db.Model(stats).Update("accepted_total", gorm.Expr("accepted_total + 1")).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count accepted")
		return fmt.Errorf("failed to count accepted: %w", err)
	}

	return nil
}

// TrialCount tracks how many trial runs a user has done per problem.
type TrialCount struct {
	Model
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_trial_count"`
	ProblemID uuid.UUID `gorm:"uniqueIndex:idx_trial_count"`
	Count     int
}

func (TrialCount) TableName() string {
	return "trial_count"
}

func (t TrialCount) GetID() uuid.UUID {
	return t.ID
}

// Bumps the trial counter for a user and problem.
func CountTrial(ctx context.Context, db *gorm.DB, userID, problemID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "CountTrial")
	defer span.End()

	db = db.WithContext(ctx)

	row := TrialCount{UserID: userID, ProblemID: problemID, Count: 1}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
		DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("trial_count.count + 1")}),
	}).Create(&row).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count trial")
		return fmt.Errorf("failed to count trial: %w", err)
	}

	return nil
}

// AssignmentScore is the score kept for a user on a problem within the
// owning group's scoreboard. Only raised, never lowered.
type AssignmentScore struct {
	Model
	GroupID   uuid.UUID `gorm:"uniqueIndex:idx_assignment_score"`
	ProblemID uuid.UUID `gorm:"uniqueIndex:idx_assignment_score"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_assignment_score"`
	Score     int
}

func (AssignmentScore) TableName() string {
	return "assignment_score"
}

func (a AssignmentScore) GetID() uuid.UUID {
	return a.ID
}

// Records a score for the group scoreboard, keeping the best one.
func RecordAssignmentScore(
	ctx context.Context,
	db *gorm.DB,
	groupID, problemID, userID uuid.UUID,
	score int,
) error {
	ctx, span := tracer.Start(ctx, "RecordAssignmentScore")
	defer span.End()

	span.SetAttributes(
		attribute.String("problemID", problemID.String()),
		attribute.Int("score", score),
	)

	db = db.WithContext(ctx)

	row := AssignmentScore{GroupID: groupID, ProblemID: problemID, UserID: userID, Score: score}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}, {Name: "problem_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"score": gorm.Expr("GREATEST(assignment_score.score, EXCLUDED.score)"),
		}),
	}).Create(&row).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record assignment score")
		return fmt.Errorf("failed to record assignment score: %w", err)
	}

	return nil
}
