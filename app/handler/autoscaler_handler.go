package handler

import (
	"net/http"
	"strconv"

	"elasticpool/pkg/autoscaler"
	"elasticpool/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AutoScalerHandler exposes fleet controller state
type AutoScalerHandler struct {
	manager *autoscaler.Manager
}

// NewAutoScalerHandler creates autoscaler handler
func NewAutoScalerHandler(manager *autoscaler.Manager) *AutoScalerHandler {
	return &AutoScalerHandler{manager: manager}
}

// GetStatus gets autoscaler status
// @Summary Get autoscaler status
// @Description Last decision, tick count, naming counter and recent scaling events
// @Tags AutoScaler
// @Produce json
// @Success 200 {object} autoscaler.Status
// @Router /api/v1/autoscaler/status [get]
func (h *AutoScalerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.GetStatus(c.Request.Context()))
}

// GetRecentEvents gets recent scaling events
// @Summary Get recent scaling events
// @Tags AutoScaler
// @Param limit query int false "Event limit (default 10)"
// @Produce json
// @Success 200 {array} autoscaler.ScalingEvent
// @Router /api/v1/autoscaler/recent-events [get]
func (h *AutoScalerHandler) GetRecentEvents(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.manager.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list scaling events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []*autoscaler.ScalingEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// TriggerScale runs one tick immediately
// @Summary Trigger a control loop tick
// @Tags AutoScaler
// @Produce json
// @Success 200 {object} autoscaler.ScaleDecision
// @Router /api/v1/autoscaler/trigger [post]
func (h *AutoScalerHandler) TriggerScale(c *gin.Context) {
	ctx := c.Request.Context()
	logger.InfoCtx(ctx, "manually triggering autoscaler tick")

	if err := h.manager.RunOnce(ctx); err != nil {
		logger.ErrorCtx(ctx, "manual tick failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.manager.GetStatus(ctx).LastDecision)
}
