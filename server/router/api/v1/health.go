package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// GetHealth is the liveness probe.
// GET /api/v1/health
func (s *APIV1Service) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.Profile.Version,
		"timestamp": time.Now().UTC(),
	})
}

// GetDetailedHealth reports per-component health. The endpoint answers 200
// even when a component is degraded; the body carries the detail.
// GET /api/v1/health/detailed
func (s *APIV1Service) GetDetailedHealth(c echo.Context) error {
	ctx := c.Request().Context()

	components := map[string]any{}
	status := "healthy"

	dbStatus := "healthy"
	if err := s.Store.GetDriver().GetDB().PingContext(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}
	components["database"] = dbStatus

	knowledgeStatus := map[string]any{"status": "healthy"}
	if stats, err := s.ChatService.KnowledgeStats(ctx); err != nil {
		knowledgeStatus["status"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		knowledgeStatus["chunks"] = stats.ChunkCount
		knowledgeStatus["sources"] = stats.SourceCount
	}
	components["knowledge"] = knowledgeStatus

	sessionStats := s.ChatService.SessionStats()
	components["sessions"] = map[string]any{
		"status": "healthy",
		"active": sessionStats.ActiveSessions,
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.Profile.Version,
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}
