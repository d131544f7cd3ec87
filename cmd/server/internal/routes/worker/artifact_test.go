package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/migrations"
	"github.com/openoj/judgehub/cmd/server/internal/models"
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

func seedSubmission(t *testing.T, db *gorm.DB) *models.Submission {
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
	require.NoError(t, db.Create(submission).Error)

	return submission
}

func artifactContext(t *testing.T, submission *models.Submission, body []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("submission", submission)

	return c, rec
}

func TestPostBinaryRecordsPath(t *testing.T) {
	db := setupDB(t)
	submission := seedSubmission(t, db)

	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	store.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	h := Handler{DB: db, store: store}

	c, rec := artifactContext(t, submission, []byte("ELF bytes"))
	require.NoError(t, h.PostBinary(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ArtifactStoredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Path)

	var stored models.Submission
	require.NoError(t, db.First(&stored, "id = ?", submission.ID).Error)
	assert.Equal(t, resp.Path, stored.BinaryPath)
	assert.Contains(t, stored.AllPaths(), resp.Path, "cleanup must see the binary blob")
}

func TestPostCaseOutputLeavesBinaryPathAlone(t *testing.T) {
	db := setupDB(t)
	submission := seedSubmission(t, db)

	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	store.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	h := Handler{DB: db, store: store}

	c, rec := artifactContext(t, submission, []byte("stdout bundle"))
	require.NoError(t, h.PostCaseOutput(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.Submission
	require.NoError(t, db.First(&stored, "id = ?", submission.ID).Error)
	assert.Empty(t, stored.BinaryPath)
}
