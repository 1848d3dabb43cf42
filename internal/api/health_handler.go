package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck() error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// GetHealth reports service and database health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status := http.StatusOK
	database := "ok"
	if h.db == nil {
		database = "not configured"
	} else if err := h.db.HealthCheck(); err != nil {
		status = http.StatusServiceUnavailable
		database = err.Error()
	}

	c.JSON(status, gin.H{
		"healthy":   status == http.StatusOK,
		"database":  database,
		"timestamp": time.Now().UTC(),
	})
}
