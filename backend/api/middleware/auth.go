package middleware

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	TransmitUser = "transmitUser"

	sessionUserKey    = "user"
	sessionIDKey      = "id"
	sessionLoginAtKey = "login_at"

	sessionKeyInfo = "quickshare session cookie"
)

var now = time.Now

// sessionKeys derives the cookie hash and block keys. SESSION_SECRET wins
// over the AES key when set.
func sessionKeys(aesKey []byte, secret string) ([]byte, []byte, error) {
	master := aesKey
	if secret != "" {
		master = []byte(secret)
	}
	if len(master) == 0 {
		return nil, nil, fmt.Errorf("no session secret available")
	}
	kdf := hkdf.New(sha256.New, master, nil, []byte(sessionKeyInfo))
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

// Sessions installs the signed and encrypted cookie session.
func Sessions(aesKey []byte, secret string) (gin.HandlerFunc, error) {
	hashKey, blockKey, err := sessionKeys(aesKey, secret)
	if err != nil {
		return nil, err
	}
	store := cookie.NewStore(hashKey, blockKey)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(common.SessionLifetime / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(common.SessionName, store), nil
}

// IsAuthenticated reports whether the caller logged in within the last
// SessionLifetime.
func IsAuthenticated(c *gin.Context) bool {
	session := sessions.Default(c)
	if user, _ := session.Get(sessionUserKey).(string); user != TransmitUser {
		return false
	}
	loginAt, ok := session.Get(sessionLoginAtKey).(int64)
	if !ok {
		return false
	}
	return now().Sub(time.Unix(loginAt, 0)) <= common.SessionLifetime
}

// Login marks the session as authenticated.
func Login(c *gin.Context) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, TransmitUser)
	session.Set(sessionIDKey, uuid.New().String())
	session.Set(sessionLoginAtKey, now().Unix())
	return session.Save()
}

func TransmitAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			common.AbortWithError(c, apperrors.Unauthorized(apperrors.ErrUnauthorized, "Unauthorized."))
			return
		}
		c.Next()
	}
}
