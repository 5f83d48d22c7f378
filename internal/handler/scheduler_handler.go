package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/service"
	"github.com/noah-isme/hostel-outing-api/pkg/response"
)

type schedulerRunner interface {
	Tick(ctx context.Context) (service.RunReport, error)
	Sweep(ctx context.Context) (service.RunReport, error)
}

// SchedulerHandler lets administrators trigger scheduler passes on demand.
type SchedulerHandler struct {
	runner schedulerRunner
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(runner schedulerRunner) *SchedulerHandler {
	return &SchedulerHandler{runner: runner}
}

// Tick godoc
// @Summary Run the incoming-pass tick now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/scheduler/tick [post]
func (h *SchedulerHandler) Tick(c *gin.Context) {
	report, err := h.runner.Tick(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Sweep godoc
// @Summary Run the daily sweep now
// @Description Covers today once the sweep time has passed, otherwise yesterday.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/scheduler/sweep [post]
func (h *SchedulerHandler) Sweep(c *gin.Context) {
	report, err := h.runner.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
