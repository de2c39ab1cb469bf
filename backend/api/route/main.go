package route

import (
	"quickshare/backend/api/handler"
	"quickshare/backend/api/middleware"

	"github.com/gin-gonic/gin"
)

func SetRouter(route *gin.Engine, h *handler.Handler, webDir string) {
	route.Use(middleware.GzipStaticMiddleware())

	SetApiRouter(route, h)
	setWebRouter(route, webDir)
}
