package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/internal/services"
)

// RiskScoreHandler handles risk score preview requests
type RiskScoreHandler struct {
	riskScoreService services.RiskScoreService
	timeout          time.Duration
	logger           logger.Logger
}

// NewRiskScoreHandler creates a new risk score handler
func NewRiskScoreHandler(riskScoreService services.RiskScoreService, timeout time.Duration, log logger.Logger) *RiskScoreHandler {
	return &RiskScoreHandler{
		riskScoreService: riskScoreService,
		timeout:          timeout,
		logger:           log.With("handler", "risk_score"),
	}
}

// PreviewRiskScores scores one page of entities without persisting anything
func (h *RiskScoreHandler) PreviewRiskScores(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperrors.InvalidInput("Request body too large", err).WithStatus(http.StatusRequestEntityTooLarge))
			return
		}
		respondError(c, apperrors.InvalidInput("Failed to read request body", err))
		return
	}

	req, err := riskscore.DecodePreviewRequest(bytes.NewReader(body))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.riskScoreService.Preview(ctx, *req)
	if err != nil {
		status, envelope := apperrors.NewEnvelope(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Risk score preview failed", err, "data_view_id", req.DataViewID, "status", status)
		} else {
			h.logger.Debug("Risk score preview rejected", "data_view_id", req.DataViewID, "status", status, "reason", envelope.Message)
		}
		c.AbortWithStatusJSON(status, envelope)
		return
	}

	c.JSON(http.StatusOK, result)
}
