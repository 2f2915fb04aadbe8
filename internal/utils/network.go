package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP returns the caller's address for verification audits. The first
// public address in X-Real-IP or X-Forwarded-For wins; otherwise gin's
// ClientIP is used.
func ClientIP(c *gin.Context) string {
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); isPublicIP(real) {
		return real
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := strings.TrimSpace(part); isPublicIP(ip) {
				return ip
			}
		}
	}

	return c.ClientIP()
}

var privateRanges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

func isPublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil || ip.IsLoopback() {
		return false
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}
