package handler

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"quickshare/backend/common"
	"quickshare/backend/library/presence"
	"quickshare/backend/service"

	"github.com/gin-gonic/gin"
)

// Handler holds the services behind the share and transmit endpoints.
type Handler struct {
	Shares    *service.ShareService
	Transfers *service.TransferService
	Presence  *presence.Tracker
	Config    *common.ConfigStore
}

func New(shares *service.ShareService, transfers *service.TransferService, tracker *presence.Tracker, config *common.ConfigStore) *Handler {
	return &Handler{
		Shares:    shares,
		Transfers: transfers,
		Presence:  tracker,
		Config:    config,
	}
}

// serveFile streams path as an attachment. The content type comes from the
// extension; Range and conditional requests are handled by ServeContent.
func serveFile(c *gin.Context, path string, failure error) {
	f, err := os.Open(path)
	if err != nil {
		common.RespAppError(c, fmt.Errorf("%w: %v", failure, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		common.RespAppError(c, fmt.Errorf("%w: %s is not a regular file", failure, path))
		return
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("X-Content-Type-Options", "nosniff")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}
