package worker

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/cmd/server/internal/judge"
	servermiddleware "github.com/openoj/judgehub/cmd/server/internal/middleware"
	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/storage"
	"github.com/openoj/judgehub/internal/token"
)

const name = "github.com/openoj/judgehub/cmd/server/internal/routes/worker"

var tracer = otel.Tracer(name)

// Handler serves the callback surface workers report through. Every route
// is gated by a worker API key; the result route additionally burns the
// per-dispatch token.
type Handler struct {
	DB       *gorm.DB
	store    storage.Store
	broker   *token.Broker
	ingestor *judge.Ingestor
}

func NewHandler(
	db *gorm.DB,
	store storage.Store,
	broker *token.Broker,
	ingestor *judge.Ingestor,
) Handler {
	return Handler{
		DB:       db,
		store:    store,
		broker:   broker,
		ingestor: ingestor,
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	workerGroup := e.Group("/worker",
		middleware.BasicAuth(middlewareHandler.BasicAuthValidator),
		servermiddleware.HasPermissions("auth", &models.Permissions{Worker: true}),
	)

	submissionGroup := workerGroup.Group(
		"/submission/:submission_id",
		servermiddleware.PopulateFromIDParam[models.Submission](
			middlewareHandler,
			"submission_id",
			"submission",
		),
	)

	submissionGroup.PUT("/result/", h.PutResult)
	submissionGroup.POST("/case-output/", h.PostCaseOutput)
	submissionGroup.POST("/binary/", h.PostBinary)
}
