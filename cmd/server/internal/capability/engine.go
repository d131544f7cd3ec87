package capability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/types"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/cmd/server/internal/capability")

// Computed sets are cached for this long. A submission mutation inside the
// window can serve a stale set; that staleness is an accepted bound, there
// is no invalidation on write.
const cacheTTL = 60 * time.Second

const cachePrefix = "judgehub-capability-"

// Engine computes capability sets from group roles and submission state.
type Engine struct {
	db    *gorm.DB
	cache *redis.Client
}

func NewEngine(db *gorm.DB, cache *redis.Client) *Engine {
	return &Engine{db: db, cache: cache}
}

func cacheKey(actorID uuid.UUID, submission *models.Submission) string {
	return cachePrefix + submission.ID.String() +
		"-" + actorID.String() +
		"-" + submission.ProblemID.String()
}

// For computes the capability set of an actor on a submission. Cache
// failures fall through to a fresh computation, never to a denial.
func (e *Engine) For(
	ctx context.Context,
	actorID uuid.UUID,
	submission *models.Submission,
	problem *models.Problem,
) (Set, error) {
	ctx, span := tracer.Start(ctx, "Engine.For", trace.WithAttributes(
		attribute.String("actor.id", actorID.String()),
		attribute.String("submission.id", submission.ID.String()),
	))
	defer span.End()

	key := cacheKey(actorID, submission)

	cached, err := e.cache.Get(ctx, key).Result()
	if err == nil {
		if set, ok := decode(cached); ok {
			span.AddEvent("capability cache hit")
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "served from cache")
			return set, nil
		}
	} else if err != redis.Nil {
		logger.Logger.WarnContext(ctx, "capability cache read failed", "error", err)
		span.RecordError(err)
	}

	set, err := e.compute(ctx, actorID, submission, problem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compute capabilities")
		return 0, err
	}

	if err := e.cache.Set(ctx, key, set.encode(), cacheTTL).Err(); err != nil {
		logger.Logger.WarnContext(ctx, "capability cache write failed", "error", err)
		span.RecordError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "computed capabilities")
	return set, nil
}

func (e *Engine) compute(
	ctx context.Context,
	actorID uuid.UUID,
	submission *models.Submission,
	problem *models.Problem,
) (Set, error) {
	ctx, span := tracer.Start(ctx, "Engine.compute")
	defer span.End()

	role, err := models.MemberRole(ctx, e.db, problem.GroupID, actorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to look up group role")
		return 0, err
	}

	if role == models.RoleManager || role == models.RoleGrader {
		span.SetAttributes(attribute.String("set", ManagerSet.String()))
		return ManagerSet, nil
	}

	if submission.UserID == actorID {
		set := AuthorSet
		// A compile error exposes no hidden test data, so the author may
		// read the raw output.
		if submission.Status == types.StatusCompileError {
			set |= ViewOutput
		}
		span.SetAttributes(attribute.String("set", set.String()))
		return set, nil
	}

	if role == models.RoleMember || problem.Public {
		span.SetAttributes(attribute.String("set", View.String()))
		return View, nil
	}

	span.SetAttributes(attribute.String("set", Set(0).String()))
	return 0, nil
}
