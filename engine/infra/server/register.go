package server

import (
	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/routes"
	jobrouter "github.com/texlate/texlate/engine/job/router"
)

// RegisterRoutes mounts every API endpoint on r.
func RegisterRoutes(r *gin.Engine) {
	health := CreateHealthHandler()
	r.GET("/health", health)
	apiBase := r.Group(routes.Base())
	apiBase.GET("/health", health)
	jobrouter.Register(apiBase)
	apiBase.GET("/slots", getSlots)
	apiBase.GET("/artifacts/:name", downloadArtifact)
}
