package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
)

type HealthHandler struct {
	analyzers analyzer.Provider
}

func NewHealthHandler(analyzers analyzer.Provider) *HealthHandler {
	return &HealthHandler{analyzers: analyzers}
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// AIServices reports the health of the three analyzers.
func (h *HealthHandler) AIServices(c *gin.Context) {
	report := h.analyzers.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if report.Overall == analyzer.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
