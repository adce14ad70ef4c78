package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wozamali/admin-console/internal/app"
	"github.com/wozamali/admin-console/internal/domain"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
)

const reportTimeout = 60 * time.Second

func (s *Server) registerCollectionRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api", s.requireAuth, rateLimiter, csrfMiddleware)
	api.GET("/collections", s.handleListCollections)
	api.PATCH("/collections/:id", s.handleUpdateCollection)
	api.POST("/collections/export", s.handleExportCollections)
	api.GET("/exports", s.handleListExports)
	api.GET("/reports/collections", s.handleCollectionReport)
}

type updateCollectionRequest struct {
	Status string `json:"status" form:"status"`
}

func (s *Server) handleListCollections(c echo.Context) error {
	var filter domain.CollectionFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := domain.ParseCollectionStatus(raw)
		if !ok {
			return apperrors.ValidationError("invalid status").WithField("status", raw)
		}
		filter.Status = status
	}

	var err error
	if filter.From, filter.To, err = dateRange(c); err != nil {
		return err
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return err
	}

	collections, err := s.collections.ListCollections(c.Request().Context(), filter)
	if err != nil {
		return apperrors.InternalError("failed to list collections", err)
	}

	if err := c.JSON(http.StatusOK, map[string]any{"collections": collections}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateCollection(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid update request")
	}
	status, ok := domain.ParseCollectionStatus(req.Status)
	if !ok {
		return apperrors.ValidationError("invalid status").WithField("status", req.Status)
	}

	collection, err := s.collections.UpdateStatus(c.Request().Context(), id, status)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, collection); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleExportCollections(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	format, err := domain.ParseReportFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(c, reportTimeout)
	defer cancel()

	file, export, err := s.collections.Export(ctx, session.AdminID, format, from, to)
	if err != nil {
		return err
	}

	c.Response().Header().Set("X-Export-Id", export.ID.String())
	return sendFile(c, file)
}

func (s *Server) handleListExports(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	exports, err := s.collections.ListExports(c.Request().Context(), limit)
	if err != nil {
		return apperrors.InternalError("failed to list exports", err)
	}

	if err := c.JSON(http.StatusOK, map[string]any{"exports": exports}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCollectionReport(c echo.Context) error {
	format, err := domain.ParseReportFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(c, reportTimeout)
	defer cancel()

	file, err := s.collections.Report(ctx, format, from, to)
	if err != nil {
		return err
	}
	return sendFile(c, file)
}

func sendFile(c echo.Context, file *app.File) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Response().Header().Set("Cache-Control", "no-store")
	if err := c.Blob(http.StatusOK, file.ContentType, file.Body); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	return nil
}
