package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/openoj/judgehub/internal/config"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/types"
)

// probe asks one worker for its load. Unreachable or not-ready workers are
// reported as errors; the caller treats them as out of the running.
func (c *Coordinator) probe(ctx context.Context, worker config.Worker) (*types.WorkerStatus, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.probe", trace.WithAttributes(
		attribute.String("worker.name", worker.Name),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, worker.URL+"/status", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct probe request")
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+worker.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker unreachable")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("invalid status code: %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid status code")
		return nil, err
	}

	var status types.WorkerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode worker status")
		return nil, err
	}

	if !status.Ready {
		err = fmt.Errorf("worker %s reports not ready", worker.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker not ready")
		return nil, err
	}

	span.SetAttributes(attribute.Int("worker.load", status.Load))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "probed worker")
	return &status, nil
}

// selectWorker probes every configured worker concurrently and picks the one
// with the lowest reported load. A worker that fails its probe only removes
// itself from the running.
func (c *Coordinator) selectWorker(ctx context.Context) (*config.Worker, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.selectWorker")
	defer span.End()

	var mu sync.Mutex
	var best *config.Worker
	bestLoad := 0

	group, ctx := errgroup.WithContext(ctx)
	for i := range c.workers {
		worker := &c.workers[i]
		group.Go(func() error {
			status, err := c.probe(ctx, *worker)
			if err != nil {
				logger.Logger.WarnContext(
					ctx,
					"worker probe failed",
					"worker", worker.Name,
					"error", err,
				)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if best == nil || status.Load < bestLoad {
				best = worker
				bestLoad = status.Load
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to probe workers")
		return nil, err
	}

	if best == nil {
		span.RecordError(ErrNoWorker)
		span.SetStatus(codes.Error, "no worker available")
		return nil, ErrNoWorker
	}

	span.SetAttributes(
		attribute.String("worker.name", best.Name),
		attribute.Int("worker.load", bestLoad),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "selected worker")
	return best, nil
}
