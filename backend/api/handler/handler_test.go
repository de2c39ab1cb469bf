package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quickshare/backend/api/middleware"
	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"
	"quickshare/backend/library/presence"
	"quickshare/backend/model"
	"quickshare/backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

var testAESKey = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	store   *model.Store
	config  *common.ConfigStore
	files   string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := model.Open(model.Options{
		SQLitePath: filepath.Join(t.TempDir(), "sqlite.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := common.DefaultConfig(t.TempDir())
	cfg.Transmit.MaxFileSize = 1
	config := common.NewMemoryConfigStore(cfg)

	h := New(
		service.NewShareService(store, testAESKey, config),
		service.NewTransferService(config),
		presence.NewTracker(common.PresenceWindow),
		config,
	)

	router := gin.New()
	sessionMiddleware, err := middleware.Sessions(testAESKey, "")
	require.NoError(t, err)
	router.Use(sessionMiddleware)
	router.GET("/api/share/is_private/:token", h.ShareIsPrivate)
	router.POST("/api/share/info/:token", h.ShareInfo)
	router.GET("/api/share/download/:token/:fileId", h.ShareDownload)
	router.POST("/api/transmit/login", h.TransmitLogin)
	router.GET("/api/transmit/alive/:uuid", h.TransmitAlive)
	router.GET("/api/transmit/logged", h.TransmitLogged)
	router.GET("/api/transmit/files", h.TransmitFiles)
	router.GET("/api/transmit/files/*path", h.TransmitFiles)
	authed := router.Group("/api/transmit", middleware.TransmitAuth())
	authed.GET("/parameter", h.TransmitParameter)
	authed.POST("/upload", h.TransmitUpload)
	authed.GET("/download/*path", h.TransmitDownload)

	return &testEnv{
		router:  router,
		handler: h,
		store:   store,
		config:  config,
		files:   t.TempDir(),
	}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.files, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) share(t *testing.T, verifyCode string, paths ...string) (*service.ShareSummary, string) {
	t.Helper()
	summary, err := e.handler.Shares.CreateShare(paths)
	require.NoError(t, err)
	if verifyCode != "" {
		require.NoError(t, e.handler.Shares.EditShare(summary.ID, service.ShareEdit{VerifyCode: &verifyCode}))
	}
	return summary, summary.Token
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	form := url.Values{"password": {common.DefaultPassword}}
	req, _ := http.NewRequest("POST", "/api/transmit/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := e.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	cookies := resp.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func postForm(path string, form url.Values) *http.Request {
	req, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var body common.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestShareIsPrivate(t *testing.T) {
	env := setupTestEnv(t)
	a := env.writeFile(t, "a.txt", "hello")
	_, publicToken := env.share(t, "", a)
	_, privateToken := env.share(t, "1234", a)

	req, _ := http.NewRequest("GET", "/api/share/is_private/"+publicToken, nil)
	resp := env.do(req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"isPrivate":false}`, resp.Body.String())

	req, _ = http.NewRequest("GET", "/api/share/is_private/"+privateToken, nil)
	resp = env.do(req)
	assert.JSONEq(t, `{"isPrivate":true}`, resp.Body.String())

	req, _ = http.NewRequest("GET", "/api/share/is_private/garbage", nil)
	resp = env.do(req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Invalid sharing link.", decodeError(t, resp).Error)
}

func TestShareInfo(t *testing.T) {
	env := setupTestEnv(t)
	a := env.writeFile(t, "a.txt", "hello")
	b := env.writeFile(t, "b.bin", "0123456789")
	_, token := env.share(t, "1234", a, b, filepath.Join(env.files, "missing.txt"))

	resp := env.do(postForm("/api/share/info/"+token, url.Values{"verifyCode": {"0000"}}))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Incorrect verification code.", decodeError(t, resp).Error)

	resp = env.do(postForm("/api/share/info/"+token, url.Values{"verifyCode": {"1234"}}))
	require.Equal(t, http.StatusOK, resp.Code)
	var view service.ShareView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, 2, view.FileCount)
	assert.Equal(t, int64(15), view.TotalSize)
	assert.Equal(t, "a.txt", view.ShareFiles[0].Name)
	assert.True(t, view.ShareFiles[0].IsValid)

	assert.NotContains(t, resp.Body.String(), "1234")
	assert.NotContains(t, resp.Body.String(), env.files)
}

func TestShareDownload(t *testing.T) {
	env := setupTestEnv(t)
	a := env.writeFile(t, "report.pdf", "%PDF-1.4")
	summary, token := env.share(t, "", a)
	record, err := env.store.ReadShareHistory(summary.ID)
	require.NoError(t, err)
	fileID := record.Files[0].FileID

	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/share/download/%s/%d", token, fileID), nil)
	resp := env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "%PDF-1.4", resp.Body.String())
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report.pdf`, resp.Header().Get("Content-Disposition"))

	record, err = env.store.ReadShareHistory(summary.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Files[0].DownloadCount)

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"bad token", fmt.Sprintf("/api/share/download/garbage/%d", fileID), http.StatusNotFound},
		{"unknown file", fmt.Sprintf("/api/share/download/%s/%d", token, fileID+100), http.StatusInternalServerError},
		{"non numeric file", fmt.Sprintf("/api/share/download/%s/abc", token), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tc.path, nil)
			resp := env.do(req)
			assert.Equal(t, tc.status, resp.Code)
		})
	}

	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/share/download/%s/abc", token), nil)
	resp = env.do(req)
	assert.Equal(t, apperrors.ErrInvalidParam, decodeError(t, resp).Code)

	require.NoError(t, os.Remove(a))
	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/share/download/%s/%d", token, fileID), nil)
	resp = env.do(req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "File download failed.", decodeError(t, resp).Error)
}

func TestShareDownload_UnknownExtension(t *testing.T) {
	env := setupTestEnv(t)
	a := env.writeFile(t, "blob.qsx", "data")
	summary, token := env.share(t, "", a)
	record, err := env.store.ReadShareHistory(summary.ID)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/share/download/%s/%d", token, record.Files[0].FileID), nil)
	resp := env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/octet-stream", resp.Header().Get("Content-Type"))
}

func TestTransmitLogin(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.do(postForm("/api/transmit/login", url.Values{"password": {"wrong"}}))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Login failure.", decodeError(t, resp).Error)

	req, _ := http.NewRequest("GET", "/api/transmit/logged", nil)
	resp = env.do(req)
	assert.JSONEq(t, `{"isAuthenticated":false}`, resp.Body.String())

	cookie := env.login(t)
	req, _ = http.NewRequest("GET", "/api/transmit/logged", nil)
	resp = env.do(req, cookie)
	assert.JSONEq(t, `{"isAuthenticated":true}`, resp.Body.String())
}

func TestTransmitLogin_FailureLoggedAsError(t *testing.T) {
	env := setupTestEnv(t)

	stdout, stderr := gin.DefaultWriter, gin.DefaultErrorWriter
	var out, errOut bytes.Buffer
	gin.DefaultWriter, gin.DefaultErrorWriter = &out, &errOut
	t.Cleanup(func() { gin.DefaultWriter, gin.DefaultErrorWriter = stdout, stderr })

	req := postForm("/api/transmit/login", url.Values{"password": {"wrong"}})
	req.RemoteAddr = "192.168.1.20:4000"
	resp := env.do(req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	assert.Contains(t, errOut.String(), "192.168.1.20 Login failure, Password is: wrong")
	assert.NotContains(t, out.String(), "Login failure")
}

func TestTransmitLogin_EmptyPasswordAlwaysFails(t *testing.T) {
	env := setupTestEnv(t)
	cfg := env.config.Snapshot()
	cfg.Transmit.Password = ""
	require.NoError(t, env.config.Apply(cfg))

	resp := env.do(postForm("/api/transmit/login", url.Values{"password": {""}}))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTransmitAlive(t *testing.T) {
	env := setupTestEnv(t)

	req, _ := http.NewRequest("GET", "/api/transmit/alive/0b6f", nil)
	req.RemoteAddr = "[::ffff:192.168.1.9]:5123"
	resp := env.do(req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"alive"}`, resp.Body.String())
	assert.Equal(t, []string{"192.168.1.9"}, env.handler.Presence.GetOnlineIDs())
}

func TestTransmitParameter(t *testing.T) {
	env := setupTestEnv(t)

	req, _ := http.NewRequest("GET", "/api/transmit/parameter", nil)
	resp := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req, _ = http.NewRequest("GET", "/api/transmit/parameter", nil)
	resp = env.do(req, env.login(t))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"maxFileSize":1}`, resp.Body.String())
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestTransmitUploadListDownload(t *testing.T) {
	env := setupTestEnv(t)
	cookie := env.login(t)

	body, contentType := multipartBody(t, map[string]string{"notes.txt": "hello"})
	req, _ := http.NewRequest("POST", "/api/transmit/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := env.do(req, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"successFiles":["notes.txt"],"successCount":1}`, resp.Body.String())

	req, _ = http.NewRequest("GET", "/api/transmit/files", nil)
	resp = env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	var entries []service.TransferEntry
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name)
	assert.Equal(t, "file", entries[0].Type)
	assert.Equal(t, int64(5), entries[0].Size)

	req, _ = http.NewRequest("GET", "/api/transmit/download/notes.txt", nil)
	resp = env.do(req, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "hello", resp.Body.String())
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")

	req, _ = http.NewRequest("GET", "/api/transmit/download/notes.txt", nil)
	resp = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTransmitUpload_Errors(t *testing.T) {
	env := setupTestEnv(t)
	cookie := env.login(t)

	req, _ := http.NewRequest("POST", "/api/transmit/upload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(req, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	body, contentType := multipartBody(t, map[string]string{})
	req, _ = http.NewRequest("POST", "/api/transmit/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp = env.do(req, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Uploaded file is empty.", decodeError(t, resp).Error)

	big := strings.Repeat("x", 1024*1024+1)
	body, contentType = multipartBody(t, map[string]string{"big.bin": big})
	req, _ = http.NewRequest("POST", "/api/transmit/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp = env.do(req, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	_, err := os.Stat(filepath.Join(env.config.Snapshot().Transmit.SavePath, "big.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestTransmitFiles_Containment(t *testing.T) {
	env := setupTestEnv(t)
	cookie := env.login(t)

	req, _ := http.NewRequest("GET", "/api/transmit/files/missing", nil)
	resp := env.do(req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	req, _ = http.NewRequest("GET", "/api/transmit/download/..%2F..%2Fetc%2Fpasswd", nil)
	resp = env.do(req, cookie)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
