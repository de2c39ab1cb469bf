package middleware

import (
	"net/http"
	"sync"
	"time"

	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	CriticalRateLimitPerMinute = 20
	CriticalRateLimitBurst     = 5
	limiterIdleTTL             = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := now()
	for key, v := range l.visitors {
		if t.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, key)
		}
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = t
	return v.limiter.AllowN(t, 1)
}

func rateLimit(l *ipRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(ClientIP(c)) {
			common.AbortWithError(c, apperrors.New(apperrors.ErrTooManyRequest, http.StatusTooManyRequests, "Too many requests, please try again later."))
			return
		}
		c.Next()
	}
}

// CriticalRateLimit guards endpoints that accept secrets, one bucket per
// client IP.
func CriticalRateLimit() gin.HandlerFunc {
	return rateLimit(newIPRateLimiter(rate.Every(time.Minute/CriticalRateLimitPerMinute), CriticalRateLimitBurst))
}
