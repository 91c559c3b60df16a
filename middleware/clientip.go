package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/blogem/reqtel/tracker"
)

// ClientIP returns the source identifier of a request.
//
// Forwarding headers are only consulted when trustedProxies > 0, the number of
// reverse proxies we control on the right end of X-Forwarded-For. Anything that
// does not parse as an IP maps to tracker.UnknownSource.
func ClientIP(r *http.Request, trustedProxies int) string {
	if trustedProxies > 0 {
		if ip := forwardedFor(r.Header.Get("X-Forwarded-For"), trustedProxies); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return tracker.UnknownSource
}

// forwardedFor picks the client entry of "client, proxy1, proxy2"
func forwardedFor(xff string, trustedProxies int) string {
	if xff == "" {
		return ""
	}
	ips := strings.Split(xff, ",")
	idx := len(ips) - trustedProxies
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ips) {
		idx = len(ips) - 1
	}
	return parseIP(ips[idx])
}

func parseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
