package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/service"
	"github.com/noah-isme/hostel-outing-api/pkg/jobs"
	"github.com/noah-isme/hostel-outing-api/pkg/response"
)

type queueStats interface {
	Stats() jobs.Stats
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	events  queueStats
}

// NewMetricsHandler constructs a metrics handler. events may be nil when
// event fan-out is disabled.
func NewMetricsHandler(metrics *service.MetricsService, events queueStats) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, events: events}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot godoc
// @Summary Operational counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	meta := map[string]interface{}{}
	if h.events != nil {
		meta["event_queue"] = h.events.Stats()
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil, meta)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
