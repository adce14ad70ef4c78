package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// rateKey picks the bucket a request is counted against.
type rateKey func(c echo.Context) string

func byIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// byAdmin falls back to the client IP before authentication has run.
func byAdmin(c echo.Context) string {
	if id, ok := c.Get(contextAdminID).(uuid.UUID); ok {
		return "admin:" + id.String()
	}
	return byIP(c)
}

func newRateLimiter(ratePerSecond float64, burst int, key rateKey) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := strconv.Itoa(int(max(1, 1/ratePerSecond)))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return key(c), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			body := apperrors.ErrorResponse{Error: "rate limit exceeded", Type: "rate_limited"}
			return c.JSON(http.StatusTooManyRequests, body)
		},
	})
}
