package common

import (
	"fmt"
	"net/http"

	apperrors "quickshare/backend/common/errors"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespSuccess writes data as-is with status 200.
func RespSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RespSuccessStr writes {"message": msg} with status 200.
func RespSuccessStr(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// RespErrorStr writes an error body with the given status.
func RespErrorStr(c *gin.Context, statusCode int, code string, msg string) {
	c.JSON(statusCode, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// RespAppError maps err to its status and body. Errors that are not an
// AppError are logged and reported as a generic 500.
func RespAppError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Status >= http.StatusInternalServerError {
			SysError(fmt.Sprintf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err))
		}
		RespErrorStr(c, appErr.Status, appErr.Code, appErr.Msg)
		return
	}
	SysError(fmt.Sprintf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err))
	RespErrorStr(c, http.StatusInternalServerError, apperrors.ErrInternalServer, "Internal server error.")
}

// AbortWithError writes the error body and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	RespAppError(c, err)
	c.Abort()
}
