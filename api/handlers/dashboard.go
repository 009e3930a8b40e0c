package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/cloudpulse/api/middleware"
	"github.com/OldStager01/cloudpulse/internal/dashboard"
	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

type DashboardHandler struct {
	service *dashboard.Service
	config  config.APIConfig
}

func NewDashboardHandler(service *dashboard.Service, cfg config.APIConfig) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		config:  cfg,
	}
}

// Overview godoc
// @Summary Dashboard overview
// @Description Hourly chart, top anomalies, top recommendations and forecast summary
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dashboard.Overview
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	overview, err := h.service.Overview(ctx)
	if err != nil {
		logger.WithContext(c.Request.Context()).WithError(err).Error("Failed to build overview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build dashboard"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Anomalies godoc
// @Summary List anomalies
// @Description Anomalous hourly costs, newest first
// @Tags Anomalies
// @Produce json
// @Security BearerAuth
// @Param severity query string false "Minimum severity (LOW, MEDIUM, HIGH)"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} map[string]interface{} "Anomalies"
// @Failure 400 {object} map[string]string "Invalid severity"
// @Router /anomalies [get]
func (h *DashboardHandler) Anomalies(c *gin.Context) {
	severity := models.Severity(strings.ToUpper(strings.TrimSpace(c.Query("severity"))))
	if severity != "" && !severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be LOW, MEDIUM or HIGH"})
		return
	}

	// no limit means the full scan
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit = parseLimit(raw, h.defaultLimit(), h.maxLimit())
	}

	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	anomalies := h.service.Anomalies(ctx, severity, limit)
	c.JSON(http.StatusOK, gin.H{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// Forecast godoc
// @Summary Cost forecast
// @Description Observed daily totals reconciled with predictions, plus summary
// @Tags Forecast
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ForecastResult
// @Router /forecast [get]
func (h *DashboardHandler) Forecast(c *gin.Context) {
	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, h.service.Forecast(ctx))
}

// Recommendations godoc
// @Summary Savings recommendations
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Recommendations"
// @Router /recommendations [get]
func (h *DashboardHandler) Recommendations(c *gin.Context) {
	recs := h.service.Recommendations()
	c.JSON(http.StatusOK, gin.H{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// LiveUpdate godoc
// @Summary Append a live hour
// @Description Appends one synthetic hour, rescans, and emails the caller about new anomalies
// @Tags Live
// @Produce json
// @Security BearerAuth
// @Param force query bool false "Force a one-shot spike"
// @Success 200 {object} dashboard.LiveUpdate
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /live/update [post]
func (h *DashboardHandler) LiveUpdate(c *gin.Context) {
	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	update, err := h.service.LiveUpdate(ctx, middleware.GetUserID(c), parseBool(c.Query("force")))
	if err != nil {
		logger.WithContext(c.Request.Context()).WithError(err).Error("Live update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "live update failed"})
		return
	}

	c.JSON(http.StatusOK, update)
}

// ForceAnomaly godoc
// @Summary Start spike injection
// @Description Turns spike injection on and appends one spiked hour right away
// @Tags Live
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Flag state and the anomalies the spike produced"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /anomaly/force [post]
func (h *DashboardHandler) ForceAnomaly(c *gin.Context) {
	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	update, err := h.service.ForceAnomaly(ctx, middleware.GetUserID(c))
	if err != nil {
		logger.WithContext(c.Request.Context()).WithError(err).Error("Forced spike failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "live update failed"})
		return
	}

	logger.WithFields(map[string]interface{}{
		"user":      middleware.GetUsername(c),
		"active":    update.AnomalyActive,
		"anomalies": len(update.NewAnomalies),
	}).Info("Anomaly flag set")
	c.JSON(http.StatusOK, gin.H{
		"anomaly_active": update.AnomalyActive,
		"appended":       update.Appended,
		"new_anomalies":  update.NewAnomalies,
		"notified":       update.Notified,
	})
}

// SolveAnomaly godoc
// @Summary Stop spike injection
// @Tags Live
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]bool
// @Router /anomaly/solve [post]
func (h *DashboardHandler) SolveAnomaly(c *gin.Context) {
	state := h.service.SetAnomaly(false)
	logger.WithFields(map[string]interface{}{
		"user":   middleware.GetUsername(c),
		"active": state,
	}).Info("Anomaly flag set")
	c.JSON(http.StatusOK, gin.H{"anomaly_active": state})
}

func (h *DashboardHandler) defaultLimit() int {
	if h.config.DefaultLimit > 0 {
		return h.config.DefaultLimit
	}
	return 100
}

func (h *DashboardHandler) maxLimit() int {
	if h.config.MaxLimit > 0 {
		return h.config.MaxLimit
	}
	return 1000
}
