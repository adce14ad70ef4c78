package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
)

const dateLayout = "2006-01-02"

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid "+name).WithField(name, raw)
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ValidationError(name+" must be a non-negative integer").WithField(name, raw)
	}
	return n, nil
}

// dateRange reads from/to as inclusive calendar days (YYYY-MM-DD) and returns
// [from, to+1day). Missing bounds stay zero.
func dateRange(c echo.Context) (from, to time.Time, err error) {
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			return from, to, apperrors.ValidationError("from must be YYYY-MM-DD").WithField("from", raw)
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			return from, to, apperrors.ValidationError("to must be YYYY-MM-DD").WithField("to", raw)
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, apperrors.ValidationError("from must not be after to")
	}
	return from, to, nil
}

func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
