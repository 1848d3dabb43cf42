package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/routing"
	"github.com/ajharbinger/riskscore-preview/internal/services"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

// Route paths
const (
	RiskScorePreviewPath = "/internal/risk_score/preview"
	HealthPath           = "/health"
)

// Dependencies are the collaborators the HTTP layer is built from
type Dependencies struct {
	Services *services.Services
	Health   HealthChecker
	Config   *config.Config
	Logger   logger.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, deps Dependencies) error {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	timeout := deps.Config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	riskScoreHandler := NewRiskScoreHandler(deps.Services.RiskScore, timeout, log)
	healthHandler := NewHealthHandler(deps.Health)

	// Versioned routes are dispatched on the API-Version header
	table := routing.NewTable[gin.HandlerFunc]()
	if err := table.Register(http.MethodPost, RiskScorePreviewPath, "1", riskScoreHandler.PreviewRiskScores); err != nil {
		return fmt.Errorf("failed to register preview route: %w", err)
	}

	for _, route := range table.Routes() {
		r.Handle(route.Method, route.Path, versioned(table, route.Method, route.Path))
	}

	// Unversioned
	r.GET(HealthPath, healthHandler.GetHealth)

	return nil
}

// versioned resolves the handler for the version a request asks for
func versioned(table *routing.Table[gin.HandlerFunc], method, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler, version, err := table.Lookup(method, path, c.GetHeader(routing.VersionHeader))
		if err != nil {
			var unknown *routing.UnknownVersionError
			if errors.As(err, &unknown) {
				respondError(c, apperrors.InvalidInput(err.Error(), err).WithField(routing.VersionHeader))
				return
			}
			respondError(c, apperrors.NotFound(err.Error(), err))
			return
		}

		c.Header(routing.VersionHeader, version)
		handler(c)
	}
}

// respondError writes the error envelope for err
func respondError(c *gin.Context, err error) {
	status, body := apperrors.NewEnvelope(err)
	c.AbortWithStatusJSON(status, body)
}
