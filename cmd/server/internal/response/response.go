package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openoj/judgehub/internal/types"
)

var (
	InternalServerError = echo.NewHTTPError(
		http.StatusInternalServerError,
		types.StringError("something went wrong"),
	)
	NotFoundError = echo.NewHTTPError(http.StatusNotFound, types.StringError("not found"))

	// All workers reported a full queue; the submission stays pending.
	QueueFullError = echo.NewHTTPError(
		http.StatusAccepted,
		types.StringError("all judges are busy, submission queued"),
	)

	ForbiddenError = echo.NewHTTPError(http.StatusForbidden, types.StringError("forbidden"))

	// No configured worker answered its probe; nothing was dispatched.
	NoWorkerError = echo.NewHTTPError(
		http.StatusServiceUnavailable,
		types.StringError("no judge available, try again later"),
	)

	// Lifecycle actions blocked by a cooldown window.
	CooldownError = echo.NewHTTPError(
		http.StatusConflict,
		types.StringError("submission is being judged, try again later"),
	)

	RateLimitError = echo.NewHTTPError(
		http.StatusTooManyRequests,
		types.StringError("too many submissions, slow down"),
	)

	QuotaExceededError = echo.NewHTTPError(
		http.StatusTooManyRequests,
		types.StringError("daily submission quota exceeded"),
	)
)
