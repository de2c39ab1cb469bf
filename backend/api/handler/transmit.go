package handler

import (
	"fmt"
	"mime"
	"net/http"

	"quickshare/backend/api/middleware"
	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"
	"quickshare/backend/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) TransmitLogin(c *gin.Context) {
	password := c.PostForm("password")
	ip := middleware.ClientIP(c)
	configured := h.Config.Snapshot().Transmit.Password
	if configured == "" || password != configured {
		common.SysError(fmt.Sprintf("%s Login failure, Password is: %s", ip, password))
		common.RespAppError(c, service.ErrLoginFailure)
		return
	}
	if err := middleware.Login(c); err != nil {
		common.RespAppError(c, err)
		return
	}
	common.SysLog(ip + " Login successfully.")
	common.RespSuccessStr(c, "Login successfully.")
}

// TransmitAlive records the caller as online. The uuid path segment is the
// fallback identity when no address is available.
func (h *Handler) TransmitAlive(c *gin.Context) {
	id := middleware.ClientIP(c)
	if id == "" {
		id = c.Param("uuid")
	}
	if err := h.Presence.UpdateActivity(id); err != nil {
		common.RespErrorStr(c, http.StatusBadRequest, apperrors.ErrInvalidParam, "Client id is required.")
		return
	}
	common.RespSuccess(c, gin.H{"status": "alive"})
}

func (h *Handler) TransmitLogged(c *gin.Context) {
	common.RespSuccess(c, gin.H{"isAuthenticated": middleware.IsAuthenticated(c)})
}

func (h *Handler) TransmitParameter(c *gin.Context) {
	common.RespSuccess(c, gin.H{"maxFileSize": h.Config.Snapshot().Transmit.MaxFileSize})
}

func (h *Handler) TransmitFiles(c *gin.Context) {
	entries, err := h.Transfers.ListEntries(c.Param("path"))
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	common.RespSuccess(c, entries)
}

func (h *Handler) TransmitUpload(c *gin.Context) {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		common.RespAppError(c, service.ErrNotMultipart)
		return
	}
	mr, err := c.Request.MultipartReader()
	if err != nil {
		common.RespAppError(c, fmt.Errorf("%w: %v", service.ErrNotMultipart, err))
		return
	}
	result, err := h.Transfers.SaveUploads(c.Request.Context(), mr)
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("%s uploaded %d file(s)", middleware.ClientIP(c), result.SuccessCount))
	common.RespSuccess(c, result)
}

func (h *Handler) TransmitDownload(c *gin.Context) {
	path, err := h.Transfers.ResolveDownload(c.Param("path"))
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	serveFile(c, path, service.ErrDownloadFailed)
}
