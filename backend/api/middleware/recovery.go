package middleware

import (
	"fmt"
	"net/http"

	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a JSON 500 instead of an empty response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, err any) {
		common.SysError(fmt.Sprintf("panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, err))
		common.RespErrorStr(c, http.StatusInternalServerError, apperrors.ErrInternalServer, "Internal server error.")
		c.Abort()
	})
}
