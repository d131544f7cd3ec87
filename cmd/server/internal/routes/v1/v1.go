package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/capability"
	"github.com/openoj/judgehub/cmd/server/internal/dispatch"
	srverr "github.com/openoj/judgehub/cmd/server/internal/error"
	"github.com/openoj/judgehub/cmd/server/internal/lifecycle"
	servermiddleware "github.com/openoj/judgehub/cmd/server/internal/middleware"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/cmd/server/internal/ratelimit"
	"github.com/openoj/judgehub/internal/config"
	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
)

const name = "github.com/openoj/judgehub/cmd/server/internal/routes/v1"

var tracer = otel.Tracer(name)

type Handler struct {
	DB           *gorm.DB
	config       *config.Config
	store        storage.Store
	coordinator  *dispatch.Coordinator
	lifecycle    *lifecycle.Manager
	capabilities *capability.Engine
	redis        *redis.Client
}

// NewSubmitCooldown builds an echo rate limiter enforcing the per-user
// minimum interval between code uploads. Only the given method counts
// against the cooldown.
func NewSubmitCooldown(
	rdb *redis.Client,
	interval time.Duration,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	store := ratelimit.NewRedisIntervalStore(ratelimit.RedisIntervalConfig{
		RedisClient: rdb,
		LimiterKey:  "submit",
		Interval:    interval,
		FailOpen:    failOpen,
	})

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			auth, ok := c.Get("auth").(*models.Auth)
			if !ok {
				return "", srverr.ErrTypeAssertMismatch
			}
			return auth.ID.String(), nil
		},
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

func NewHandler(
	db *gorm.DB,
	cfg *config.Config,
	store storage.Store,
	coordinator *dispatch.Coordinator,
	lifecycleManager *lifecycle.Manager,
	capabilities *capability.Engine,
	rdb *redis.Client,
) Handler {
	return Handler{
		DB:           db,
		config:       cfg,
		store:        store,
		coordinator:  coordinator,
		lifecycle:    lifecycleManager,
		capabilities: capabilities,
		redis:        rdb,
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	l := logger.Logger

	v1Group := e.Group("/v1", middleware.BasicAuth(middlewareHandler.BasicAuthValidator))

	problemGroup := v1Group.Group(
		"/problem/:problem_id",
		servermiddleware.HasPermissions("auth", &models.Permissions{Student: true}),
		servermiddleware.PopulateFromIDParam[models.Problem](
			middlewareHandler,
			"problem_id",
			"problem",
		),
	)

	submissionGroup := v1Group.Group(
		"/submission/:submission_id",
		servermiddleware.HasPermissions("auth", &models.Permissions{Student: true}),
		servermiddleware.PopulateFromIDParam[models.Submission](
			middlewareHandler,
			"submission_id",
			"submission",
		),
	)

	codeMiddleware := []echo.MiddlewareFunc{}
	if h.config.RateLimit != nil && h.config.RateLimit.SubmitIntervalSecs > 0 {
		post := http.MethodPost

		codeMiddleware = append(codeMiddleware,
			middleware.RateLimiterWithConfig(
				NewSubmitCooldown(
					h.redis,
					time.Duration(h.config.RateLimit.SubmitIntervalSecs)*time.Second,
					h.config.RateLimit.FailOpen,
					&post,
				),
			),
		)
	} else {
		l.Warn("not configured to have a submit cooldown")
	}

	problemGroup.POST("/submission/", h.CreateSubmission)

	submissionGroup.POST("/code/", h.UploadCode, codeMiddleware...)
	submissionGroup.GET("/", h.GetSubmission)
	submissionGroup.POST("/rejudge/", h.RejudgeSubmission)
	submissionGroup.DELETE("/", h.DeleteSubmission)
}
