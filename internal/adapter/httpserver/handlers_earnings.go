package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wozamali/admin-console/internal/domain"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
)

func (s *Server) registerEarningRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	g := s.echo.Group("/api/earnings", s.requireAuth, rateLimiter, csrfMiddleware)
	g.GET("", s.handleListEarnings)
	g.POST("/:id/approve", s.handleApproveEarning)
	g.POST("/:id/reject", s.handleRejectEarning)
}

type rejectRequest struct {
	Reason string `json:"reason" form:"reason"`
}

// handleListEarnings defaults to the pending queue; status=all lists every earning.
func (s *Server) handleListEarnings(c echo.Context) error {
	filter := domain.EarningFilter{Status: domain.EarningPending}
	switch raw := c.QueryParam("status"); raw {
	case "":
	case "all":
		filter.Status = ""
	default:
		status, ok := domain.ParseEarningStatus(raw)
		if !ok {
			return apperrors.ValidationError("invalid status").WithField("status", raw)
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return err
	}

	earnings, err := s.approvals.ListEarnings(c.Request().Context(), filter)
	if err != nil {
		return apperrors.InternalError("failed to list earnings", err)
	}

	if err := c.JSON(http.StatusOK, map[string]any{"earnings": earnings}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleApproveEarning(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	earning, err := s.approvals.Approve(c.Request().Context(), id, session.AdminID)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, earning); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRejectEarning(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid reject request")
	}

	earning, err := s.approvals.Reject(c.Request().Context(), id, session.AdminID, req.Reason)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, earning); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
