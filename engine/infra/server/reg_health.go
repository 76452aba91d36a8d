package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/router"
	"github.com/texlate/texlate/pkg/logger"
	"github.com/texlate/texlate/pkg/version"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// CreateHealthHandler reports service health. The service is unhealthy
// when the shared counter store cannot be reached.
//
//	@Summary	Get server health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	router.Response
//	@Failure	503	{object}	router.Response
//	@Router		/health [get]
func CreateHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := router.GetAppState(c)
		if state == nil {
			return
		}
		ctx := c.Request.Context()
		status := statusHealthy
		code := http.StatusOK
		store := gin.H{"ready": true}
		if state.Store != nil {
			if err := state.Store.HealthCheck(ctx); err != nil {
				logger.FromContext(ctx).Warn("Health check failed", "error", err)
				status = statusUnhealthy
				code = http.StatusServiceUnavailable
				store = gin.H{"ready": false, "error": err.Error()}
			}
		}
		c.JSON(code, router.Response{
			Message: "Success",
			Data: gin.H{
				"status":     status,
				"version":    version.Get().Version,
				"slot_store": store,
				"live_jobs":  state.Runner.Registry().Len(),
			},
		})
	}
}
