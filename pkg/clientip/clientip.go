package clientip

import (
	"net"
	"net/http"
	"strings"
)

// ForwardHeaders are consulted in order before RemoteAddr. Only enable a
// header when a proxy in front of the service overwrites it.
var ForwardHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// GetIP returns the normalized client address of r, or an empty string when
// none of the sources holds a valid IP.
func GetIP(r *http.Request) string {
	for _, h := range ForwardHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		// X-Forwarded-For is a list; the first valid entry is the client.
		for ip := range strings.SplitSeq(v, ",") {
			if parsed := parseIP(ip); parsed != "" {
				return parsed
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
