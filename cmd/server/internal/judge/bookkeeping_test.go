package judge

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
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/types"
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

func acceptedTotal(t *testing.T, db *gorm.DB, userID uuid.UUID) int {
	t.Helper()

	var stats models.UserStats
	require.NoError(t, db.Where("user_id = ?", userID).First(&stats).Error)
	return stats.AcceptedTotal
}

func TestFinishJudgingCountsAcceptedOnce(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	group := &models.Group{Name: "class"}
	require.NoError(t, db.Create(group).Error)

	problem := &models.Problem{Title: "a+b", GroupID: group.ID}
	require.NoError(t, db.Create(problem).Error)

	submission := &models.Submission{
		ProblemID: problem.ID,
		UserID:    uuid.New(),
		Kind:      models.KindFormal,
		Language:  types.LanguageC,
		Status:    types.StatusAccepted,
		Score:     100,
	}
	require.NoError(t, db.Create(submission).Error)

	ing := &Ingestor{db: db, store: uploadingStore(t)}

	require.NoError(t, ing.finishJudging(ctx, submission, problem, types.StatusJudging))
	assert.Equal(t, 1, acceptedTotal(t, db, submission.UserID))

	// rejudging an already accepted submission keeps the counter steady
	require.NoError(t, ing.finishJudging(ctx, submission, problem, types.StatusAccepted))
	assert.Equal(t, 1, acceptedTotal(t, db, submission.UserID))
}
