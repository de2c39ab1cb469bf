package handler

import (
	"net/http"
	"strconv"

	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"
	"quickshare/backend/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ShareIsPrivate(c *gin.Context) {
	isPrivate, err := h.Shares.IsPrivate(c.Param("token"))
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	common.RespSuccess(c, gin.H{"isPrivate": isPrivate})
}

func (h *Handler) ShareInfo(c *gin.Context) {
	view, err := h.Shares.GetShareInfo(c.Param("token"), c.PostForm("verifyCode"))
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	common.RespSuccess(c, view)
}

// ShareDownload streams one file of a share.
func (h *Handler) ShareDownload(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil {
		common.RespErrorStr(c, http.StatusBadRequest, apperrors.ErrInvalidParam, "Invalid file id.")
		return
	}
	path, err := h.Shares.ResolveDownload(c.Param("token"), fileID)
	if err != nil {
		common.RespAppError(c, err)
		return
	}
	serveFile(c, path, service.ErrShareFileUnavailable)
}
