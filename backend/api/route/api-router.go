package route

import (
	"quickshare/backend/api/handler"
	"quickshare/backend/api/middleware"

	"github.com/gin-gonic/gin"
)

func SetApiRouter(route *gin.Engine, h *handler.Handler) {
	apiRouter := route.Group("/api")

	// Share access, anonymous
	shareRoute := apiRouter.Group("/share")
	{
		shareRoute.GET("/is_private/:token", h.ShareIsPrivate)
		shareRoute.POST("/info/:token", middleware.CriticalRateLimit(), h.ShareInfo)
		shareRoute.GET("/download/:token/:fileId", h.ShareDownload)
	}

	transmitRoute := apiRouter.Group("/transmit")
	{
		transmitRoute.POST("/login", middleware.CriticalRateLimit(), h.TransmitLogin)
		transmitRoute.GET("/alive/:uuid", h.TransmitAlive)
		transmitRoute.GET("/logged", h.TransmitLogged)
		transmitRoute.GET("/files", h.TransmitFiles)
		transmitRoute.GET("/files/*path", h.TransmitFiles)

		authRoute := transmitRoute.Group("/")
		authRoute.Use(middleware.TransmitAuth())
		{
			authRoute.GET("/parameter", h.TransmitParameter)
			authRoute.POST("/upload", h.TransmitUpload)
			authRoute.GET("/download/*path", h.TransmitDownload)
		}
	}
}
