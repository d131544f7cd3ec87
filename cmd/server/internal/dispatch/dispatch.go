package dispatch

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/cmd/server/internal/dispatch")

var (
	// No configured worker answered its status probe.
	ErrNoWorker = errors.New("no worker available")

	// The chosen worker's queue is full; the submission stays pending and
	// the caller decides whether and when to retry.
	ErrQueueFull = errors.New("worker queue is full")

	// The worker refused the shared credential.
	ErrInvalidToken = errors.New("worker rejected credentials")

	// The worker rejected the job payload.
	ErrBadRequest = errors.New("worker rejected the job")

	// The worker answered with something we do not understand.
	ErrWorkerFailed = errors.New("worker failed to accept the job")
)
