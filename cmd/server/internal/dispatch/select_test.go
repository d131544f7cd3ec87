package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openoj/judgehub/internal/config"
	"github.com/openoj/judgehub/internal/types"
)

func fakeWorker(t *testing.T, status types.WorkerStatus) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, status)
	})

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func testCoordinator(workers ...config.Worker) *Coordinator {
	return &Coordinator{
		client:       http.DefaultClient,
		workers:      workers,
		probeTimeout: time.Second,
	}
}

func TestSelectWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("PicksLowestLoad", func(t *testing.T) {
		busy := fakeWorker(t, types.WorkerStatus{Load: 7, Ready: true})
		idle := fakeWorker(t, types.WorkerStatus{Load: 1, Ready: true})

		c := testCoordinator(
			config.Worker{Name: "busy", URL: busy.URL, Token: "t"},
			config.Worker{Name: "idle", URL: idle.URL, Token: "t"},
		)

		worker, err := c.selectWorker(ctx)
		require.NoError(t, err)
		assert.Equal(t, "idle", worker.Name)
	})

	t.Run("SkipsNotReady", func(t *testing.T) {
		down := fakeWorker(t, types.WorkerStatus{Load: 0, Ready: false})
		up := fakeWorker(t, types.WorkerStatus{Load: 9, Ready: true})

		c := testCoordinator(
			config.Worker{Name: "down", URL: down.URL, Token: "t"},
			config.Worker{Name: "up", URL: up.URL, Token: "t"},
		)

		worker, err := c.selectWorker(ctx)
		require.NoError(t, err)
		assert.Equal(t, "up", worker.Name)
	})

	t.Run("SkipsUnreachable", func(t *testing.T) {
		up := fakeWorker(t, types.WorkerStatus{Load: 3, Ready: true})

		c := testCoordinator(
			config.Worker{Name: "gone", URL: "http://127.0.0.1:1", Token: "t"},
			config.Worker{Name: "up", URL: up.URL, Token: "t"},
		)

		worker, err := c.selectWorker(ctx)
		require.NoError(t, err)
		assert.Equal(t, "up", worker.Name)
	})

	t.Run("NoneAvailable", func(t *testing.T) {
		c := testCoordinator(
			config.Worker{Name: "gone", URL: "http://127.0.0.1:1", Token: "t"},
		)

		_, err := c.selectWorker(ctx)
		assert.ErrorIs(t, err, ErrNoWorker)
	})
}

func TestDecodeOutcome(t *testing.T) {
	assert.Equal(t, types.SubmitOK, decodeOutcome(http.StatusOK))
	assert.Equal(t, types.SubmitQueueFull, decodeOutcome(http.StatusInternalServerError))
	assert.Equal(t, types.SubmitBadRequest, decodeOutcome(http.StatusBadRequest))
	assert.Equal(t, types.SubmitInvalidToken, decodeOutcome(http.StatusForbidden))
	assert.Equal(t, types.SubmitFailed, decodeOutcome(http.StatusTeapot))
}

func TestOutcomeError(t *testing.T) {
	assert.ErrorIs(t, outcomeError(types.SubmitQueueFull), ErrQueueFull)
	assert.ErrorIs(t, outcomeError(types.SubmitBadRequest), ErrBadRequest)
	assert.ErrorIs(t, outcomeError(types.SubmitInvalidToken), ErrInvalidToken)
	assert.ErrorIs(t, outcomeError(types.SubmitFailed), ErrWorkerFailed)
}
