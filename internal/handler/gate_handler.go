package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/dto"
	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
	"github.com/noah-isme/hostel-outing-api/pkg/response"
)

type gateService interface {
	Scan(ctx context.Context, raw string, actor models.Actor, location string) (*dto.ScanResponse, error)
	Check(ctx context.Context, raw string, actor models.Actor) (*dto.ScanResponse, error)
}

// GateHandler serves the security console.
type GateHandler struct {
	service gateService
}

// NewGateHandler constructs the handler.
func NewGateHandler(service gateService) *GateHandler {
	return &GateHandler{service: service}
}

// Scan godoc
// @Summary Record a gate scan
// @Description Consumes the pass and records check-out or check-in.
// @Tags Gate
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scanned pass"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /gate/scan [post]
func (h *GateHandler) Scan(c *gin.Context) {
	actor, req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Scan(c.Request.Context(), req.Token, actor, strings.TrimSpace(req.Location))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Check a pass without consuming it
// @Tags Gate
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scanned pass"
// @Success 200 {object} response.Envelope
// @Router /gate/validate [post]
func (h *GateHandler) Validate(c *gin.Context) {
	actor, req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Check(c.Request.Context(), req.Token, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *GateHandler) bind(c *gin.Context) (models.Actor, dto.ScanRequest, bool) {
	var req dto.ScanRequest
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return actor, req, false
	}
	return actor, req, true
}
