package lifecycle

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"
	"gorm.io/datatypes"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/dispatch"
	"github.com/openoj/judgehub/cmd/server/internal/migrations"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/config"
	mockstorage "github.com/openoj/judgehub/internal/storage/mock"
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

func seedSubmission(t *testing.T, db *gorm.DB, mutate func(*models.Submission)) *models.Submission {
	t.Helper()

	group := &models.Group{Name: "class"}
	require.NoError(t, db.Create(group).Error)

	problem := &models.Problem{Title: "a+b", GroupID: group.ID}
	require.NoError(t, db.Create(problem).Error)

	submission := &models.Submission{
		ProblemID: problem.ID,
		Kind:      models.KindFormal,
		Language:  types.LanguageC,
		CodePath:  "code-blob",
	}
	mutate(submission)
	require.NoError(t, db.Create(submission).Error)

	return submission
}

func TestRejudgeCooldowns(t *testing.T) {
	ctx := context.Background()

	t.Run("FreshPendingRefused", func(t *testing.T) {
		m := &Manager{}
		submission := &models.Submission{Status: types.StatusPending}
		submission.CreatedAt = time.Now()

		err := m.Rejudge(ctx, submission)
		assert.ErrorIs(t, err, ErrCooldown)
	})

	t.Run("RecentlyDispatchedRefused", func(t *testing.T) {
		m := &Manager{}
		submission := &models.Submission{
			Status:   types.StatusJudging,
			LastSend: models.NewNullFromData(time.Now().Add(-time.Minute)),
		}

		err := m.Rejudge(ctx, submission)
		assert.ErrorIs(t, err, ErrCooldown)
	})
}

func TestRejudgeResetsBeforeRedispatch(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	store.EXPECT().Delete(gomock.Any(), "old-output").Return(nil)

	// no workers configured: the redispatch itself fails after the reset
	coordinator := dispatch.NewCoordinator(db, store, nil, http.DefaultClient, &config.Config{})
	m := NewManager(db, store, coordinator)

	submission := seedSubmission(t, db, func(s *models.Submission) {
		s.Status = types.StatusWrongAnswer
		s.Score = 0
		s.Tasks = datatypes.NewJSONSlice([]types.TaskResult{
			{Cases: []types.CaseResult{{OutputPath: "old-output", Status: types.StatusWrongAnswer}}},
		})
	})

	err := m.Rejudge(ctx, submission)
	assert.ErrorIs(t, err, dispatch.ErrNoWorker)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, submission.ID).Error)
	assert.Equal(t, types.StatusPending, reloaded.Status)
	assert.Equal(t, -1, reloaded.Score)
	assert.Empty(t, reloaded.Tasks, "tasks must be cleared before redispatch")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("RefusedWhileJudging", func(t *testing.T) {
		m := &Manager{}
		submission := &models.Submission{
			Status:   types.StatusJudging,
			LastSend: models.NewNullFromData(time.Now().Add(-5 * time.Minute)),
		}

		err := m.Delete(ctx, submission)
		assert.ErrorIs(t, err, ErrCooldown)
	})

	t.Run("ProceedsPastCooldown", func(t *testing.T) {
		db := setupDB(t)

		ctrl := gomock.NewController(t)
		store := mockstorage.NewMockStore(ctrl)
		store.EXPECT().Delete(gomock.Any(), "code-blob").Return(nil)

		m := NewManager(db, store, nil)

		submission := seedSubmission(t, db, func(s *models.Submission) {
			s.Status = types.StatusJudging
			s.LastSend = models.NewNullFromData(time.Now().Add(-11 * time.Minute))
		})

		require.NoError(t, m.Delete(ctx, submission))

		var count int64
		require.NoError(
			t,
			db.Model(&models.Submission{}).Where("id = ?", submission.ID).Count(&count).Error,
		)
		assert.Zero(t, count)
	})

	t.Run("BlobFailureDoesNotAbort", func(t *testing.T) {
		db := setupDB(t)

		ctrl := gomock.NewController(t)
		store := mockstorage.NewMockStore(ctrl)
		store.EXPECT().
			Delete(gomock.Any(), gomock.Any()).
			Return(assert.AnError).
			AnyTimes()

		m := NewManager(db, store, nil)

		submission := seedSubmission(t, db, func(s *models.Submission) {
			s.Status = types.StatusAccepted
		})

		require.NoError(t, m.Delete(ctx, submission))
	})
}
