package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Deadline keeps a fraction of the score for submissions accepted after At.
// With several deadlines passed, the smallest factor wins.
type Deadline struct {
	At     time.Time `json:"at"`
	Factor float64   `json:"factor"`
}

type Problem struct {
	Model
	Title   string
	GroupID uuid.UUID // owning group
	Public  bool

	// Point value per task, index-aligned with the worker's task list.
	TaskPoints datatypes.JSONSlice[int]
	Deadlines  datatypes.JSONSlice[Deadline]

	// Per-user formal submissions per day. Zero falls back to the
	// server-wide quota.
	DailyQuota int
}

func (Problem) TableName() string {
	return "problem"
}

func (p Problem) GetID() uuid.UUID {
	return p.ID
}

// Fraction of the score kept for a submission accepted at the given time.
func (p Problem) ScoreFactorAt(at time.Time) float64 {
	factor := 1.0
	for _, d := range p.Deadlines {
		if at.After(d.At) && d.Factor < factor {
			factor = d.Factor
		}
	}
	return factor
}

func (p Problem) TotalPoints() int {
	total := 0
	for _, pts := range p.TaskPoints {
		total += pts
	}
	return total
}
