package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/types"
)

func testContext(method string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestSubmitCooldownConfig(t *testing.T) {
	post := http.MethodPost
	cfg := NewSubmitCooldown(nil, 10*time.Second, true, &post)

	t.Run("SkipsOtherMethods", func(t *testing.T) {
		assert.True(t, cfg.Skipper(testContext(http.MethodGet)))
		assert.False(t, cfg.Skipper(testContext(http.MethodPost)))
	})

	t.Run("IdentifierIsAuthID", func(t *testing.T) {
		c := testContext(http.MethodPost)
		id := uuid.New()
		c.Set("auth", &models.Auth{Model: models.Model{ID: id}})

		got, err := cfg.IdentifierExtractor(c)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("MissingAuthErrors", func(t *testing.T) {
		_, err := cfg.IdentifierExtractor(testContext(http.MethodPost))
		assert.Error(t, err)
	})
}

func TestHasStoredOutput(t *testing.T) {
	assert.False(t, hasStoredOutput(&models.Submission{}))

	withOutput := &models.Submission{
		Tasks: datatypes.NewJSONSlice([]types.TaskResult{
			{Cases: []types.CaseResult{{Status: types.StatusAccepted}}},
			{Cases: []types.CaseResult{{OutputPath: "abc123", Status: types.StatusAccepted}}},
		}),
	}
	assert.True(t, hasStoredOutput(withOutput))
}
