package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/correlation"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders every returned error as an ErrorResponse.
// Domain sentinels are mapped first; echo's own HTTP errors (CSRF, routing)
// keep their status code.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				slog.WarnContext(c.Request().Context(), "Error after response was committed", "path", c.Request().URL.Path, "error", err)
				return nil
			}

			var structuredErr *apperrors.Error
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				structuredErr = WrapHTTPError(httpErr)
				if err := c.JSON(httpErr.Code, structuredErr.ToResponse()); err != nil {
					return fmt.Errorf("failed to write error response: %w", err)
				}
				return nil
			}

			structuredErr = apperrors.AsStructuredError(mapDomainError(err))
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// mapDomainError turns domain sentinels into structured errors. Anything
// else passes through unchanged.
func mapDomainError(err error) error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrEarningNotFound):
		return apperrors.NotFoundError("earning not found")
	case errors.Is(err, domain.ErrCollectionNotFound):
		return apperrors.NotFoundError("collection not found")
	case errors.Is(err, domain.ErrNotPending):
		return apperrors.ConflictError("already reviewed")
	case errors.Is(err, domain.ErrAlreadyExported):
		return apperrors.ConflictError("collections changed during export, try again")
	case errors.Is(err, domain.ErrNothingToExport):
		return apperrors.ConflictError("nothing to export in this range")
	case errors.Is(err, domain.ErrReasonRequired):
		return apperrors.ValidationError("a rejection reason is required")
	case errors.Is(err, domain.ErrInvalidStatus):
		return apperrors.ValidationError("status must be approved or rejected")
	case errors.Is(err, domain.ErrUnknownFormat):
		return apperrors.ValidationError("format must be xlsx or pdf")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.UnauthorizedError("invalid email or password")
	case errors.Is(err, domain.ErrNotAdmin):
		return apperrors.ForbiddenError("admin access required")
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionExpired):
		return apperrors.UnauthorizedError("session expired")
	}
	return err
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if adminID := c.Get(contextAdminID); adminID != nil {
		attrs = append(attrs, "admin_id", adminID)
	}

	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict, apperrors.TypeForbidden:
		slog.WarnContext(ctx, "Request refused", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusForbidden:
		errType = apperrors.TypeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = apperrors.TypeExternal
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
