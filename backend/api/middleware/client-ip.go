package middleware

import (
	"net/netip"

	"github.com/gin-gonic/gin"
)

// ClientIP is the caller address with IPv4-mapped IPv6 unmapped.
func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if addr, err := netip.ParseAddr(ip); err == nil {
		return addr.Unmap().String()
	}
	return ip
}
