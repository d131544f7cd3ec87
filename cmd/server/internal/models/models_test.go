package models

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/migrations"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16.4-alpine",
		postgres.WithDatabase("judgehub"),
		postgres.WithUsername("judgehub"),
		postgres.WithPassword("judgehub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	t.Cleanup(func() {
		assert.NoError(
			t,
			testcontainers.TerminateContainer(postgresContainer),
			"failed to terminate container",
		)
	})
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string to container")

	db, err := gorm.Open(gormpostgres.Open(dsn))
	require.NoError(t, err, "failed to connect to the database")

	require.NoError(t, migrations.Up(ctx, db), "failed to migrate db")

	return db
}

func TestUtilities(t *testing.T) {
	db := setupDB(t)

	auth := &Auth{
		Token:       "foobar",
		Note:        "foobar",
		Active:      NewNullFromData(true),
		Permissions: Permissions{Student: true},
	}
	result := db.Create(auth)
	require.NoError(t, result.Error, "failed to write element to db")

	t.Run("ExistsByID", func(t *testing.T) {
		exists, err := Exists[Auth](context.Background(), db, "id = ?", auth.ID)
		require.NoError(t, err, "failed to check db for existence")

		assert.True(t, exists, "did not find the object")
	})

	t.Run("ExistsByNote", func(t *testing.T) {
		exists, err := Exists[Auth](context.Background(), db, "note = ?", auth.Note)
		require.NoError(t, err, "failed to check db for existence")

		assert.True(t, exists, "did not find the object")
	})

	t.Run("DoesNotExistByID", func(t *testing.T) {
		exists, err := Exists[Auth](context.Background(), db, "id = ?", uuid.New())
		require.NoError(t, err, "failed to check db for existence")

		assert.False(t, exists, "should not find object")
	})
}

func TestUserStatsRollover(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	userID := uuid.New()

	require.NoError(t, CountSubmit(ctx, db, userID), "failed to count submit")
	require.NoError(t, CountSubmit(ctx, db, userID), "failed to count submit")

	stats, err := StatsForUser(ctx, db, userID)
	require.NoError(t, err, "failed to fetch stats")
	assert.Equal(t, 2, stats.SubmitsToday)

	// backdate the row; the next read should reset the counter
	result := db.Model(stats).
		Update("day", time.Now().UTC().AddDate(0, 0, -1).Truncate(24*time.Hour))
	require.NoError(t, result.Error, "failed to backdate stats")

	stats, err = StatsForUser(ctx, db, userID)
	require.NoError(t, err, "failed to fetch stats")
	assert.Equal(t, 0, stats.SubmitsToday, "counter should reset on a new day")
}

func TestTrialCount(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	group := &Group{Name: "class"}
	require.NoError(t, db.Create(group).Error)

	problem := &Problem{Title: "a+b", GroupID: group.ID}
	require.NoError(t, db.Create(problem).Error)

	userID := uuid.New()
	require.NoError(t, CountTrial(ctx, db, userID, problem.ID))
	require.NoError(t, CountTrial(ctx, db, userID, problem.ID))

	var row TrialCount
	require.NoError(
		t,
		db.Where("user_id = ? AND problem_id = ?", userID, problem.ID).First(&row).Error,
	)
	assert.Equal(t, 2, row.Count)
}

func TestAssignmentScoreKeepsBest(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	group := &Group{Name: "class"}
	require.NoError(t, db.Create(group).Error)

	problem := &Problem{Title: "a+b", GroupID: group.ID}
	require.NoError(t, db.Create(problem).Error)

	userID := uuid.New()

	require.NoError(t, RecordAssignmentScore(ctx, db, group.ID, problem.ID, userID, 80))
	require.NoError(t, RecordAssignmentScore(ctx, db, group.ID, problem.ID, userID, 50))

	var row AssignmentScore
	require.NoError(
		t,
		db.Where("group_id = ? AND user_id = ?", group.ID, userID).First(&row).Error,
	)
	assert.Equal(t, 80, row.Score, "lower score should not replace a better one")
}
