package route

import (
	"net/http"
	"path/filepath"
	"strings"

	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

func setWebRouter(route *gin.Engine, webDir string) {
	route.Use(static.Serve("/", static.LocalFile(webDir, false)))
	indexPath := filepath.Join(webDir, "index.html")
	route.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			common.RespErrorStr(c, http.StatusNotFound, apperrors.ErrNotFound, "API route not found.")
			return
		}
		c.File(indexPath)
	})
}
