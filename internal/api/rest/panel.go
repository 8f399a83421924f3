package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/ShackControl/internal/auth"
	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/interfaces"
	"github.com/KevinKickass/ShackControl/internal/session"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/status
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.panel.Snapshot())
}

// POST /api/v1/command
func (s *Server) executeCommand(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Invalid request body", err.Error()))
		return
	}

	action, err := control.ParseAction(req.Action)
	if err != nil || !interfaces.RemoteAllowed(action) {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Unknown action", req.Action))
		return
	}

	snap, err := s.panel.Submit(c.Request.Context(), action)
	if err != nil {
		s.logger.Warn("Remote command failed",
			zap.String("operator", auth.Operator(c)),
			zap.String("action", req.Action),
			zap.Error(err))

		switch {
		case errors.Is(err, session.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("SESSION_CLOSED", "Control session has ended", snap))
		case errors.Is(err, control.ErrUnsupported):
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Action not supported by this device", req.Action))
		default:
			c.JSON(http.StatusBadGateway, types.NewErrorResponse(types.ErrorCode(err), err.Error(), snap))
		}
		return
	}

	s.logger.Info("Remote command executed",
		zap.String("operator", auth.Operator(c)),
		zap.String("action", req.Action))
	c.JSON(http.StatusOK, snap)
}
