package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/service"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics  *service.MetricsService
	resolver *i18n.Resolver
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, resolver *i18n.Resolver) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, resolver: resolver}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 until the translation dictionaries are loaded.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.resolver == nil || !h.resolver.Ready() {
		response.Error(c, appErrors.ErrNotReady)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "languages": h.resolver.Languages()})
}

// System godoc
// @Summary Runtime metrics snapshot
// @Tags System
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}
