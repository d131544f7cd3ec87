package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestScoreFactorAt(t *testing.T) {
	now := time.Now()

	problem := Problem{
		TaskPoints: datatypes.JSONSlice[int]{40, 60},
		Deadlines: datatypes.JSONSlice[Deadline]{
			{At: now.Add(-2 * time.Hour), Factor: 0.8},
			{At: now.Add(-1 * time.Hour), Factor: 0.5},
			{At: now.Add(time.Hour), Factor: 0.2},
		},
	}

	t.Run("BeforeAllDeadlines", func(t *testing.T) {
		assert.InDelta(t, 1.0, problem.ScoreFactorAt(now.Add(-3*time.Hour)), 1e-9)
	})

	t.Run("SmallestPassedFactorWins", func(t *testing.T) {
		assert.InDelta(t, 0.5, problem.ScoreFactorAt(now), 1e-9)
	})

	t.Run("FutureDeadlineIgnored", func(t *testing.T) {
		assert.InDelta(t, 0.8, problem.ScoreFactorAt(now.Add(-90*time.Minute)), 1e-9)
	})

	t.Run("TotalPoints", func(t *testing.T) {
		assert.Equal(t, 100, problem.TotalPoints())
	})
}
