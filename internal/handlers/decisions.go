package handlers

import (
	"net/http"
	"strconv"

	"heatwise/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultChangesLimit = 50
	maxChangesLimit     = 200

	errNoDecisionYet = "no decision recorded yet"
	errViewNotReady  = "materialized view not ready"
	errInvalidLimit  = "invalid 'limit': must be a positive integer"
)

// @Summary      Health check
// @Description  Reports view readiness, last folded offset and fold lag.
// @Tags         system
// @Produce      json
// @Success      200  {object}  models.Health
// @Failure      503  {object}  models.Health
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	health := h.services.Health()
	code := http.StatusOK
	if health.Status != models.HealthOK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// @Summary      Latest decision
// @Description  The most recent state-change event folded into the view.
// @Tags         decisions
// @Produce      json
// @Success      200  {object}  models.StoredEvent
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/decisions/latest [get]
// @Security     BearerAuth
func (h *Handler) latestDecision(c *gin.Context) {
	decision, ok := h.services.LatestDecision()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoDecisionYet})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// @Summary      Recent state changes
// @Description  State-change events, most recent first, bounded by limit.
// @Tags         decisions
// @Produce      json
// @Param        limit  query  int  false  "max entries (default 50, cap 200)"
// @Success      200  {object}  map[string]interface{}  "count, changes"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/state/changes [get]
// @Security     BearerAuth
func (h *Handler) stateChanges(c *gin.Context) {
	limit := defaultChangesLimit
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return
		}
		limit = v
	}
	if limit > maxChangesLimit {
		limit = maxChangesLimit
	}

	changes := h.services.RecentStateChanges(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(changes),
		"changes": changes,
	})
}

// @Summary      Device view
// @Description  Full materialized view snapshot for the device.
// @Tags         decisions
// @Produce      json
// @Success      200  {object}  models.MaterializedView
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/device [get]
// @Security     BearerAuth
func (h *Handler) deviceView(c *gin.Context) {
	view, ok := h.services.DeviceView()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errViewNotReady})
		return
	}
	c.JSON(http.StatusOK, view)
}
