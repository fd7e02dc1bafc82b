package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type requestInfoKey struct{}

type requestInfo struct {
	userAgent string
	remoteIP  string
}

// ClientInfo is a chi-compatible middleware that captures the caller's
// User-Agent and remote IP into the request context so huma handlers can
// reach them without unwrapping the raw request. Mount it after RealIP so
// RemoteAddr reflects the proxy-resolved client address.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &requestInfo{
			userAgent: r.UserAgent(),
			remoteIP:  stripPort(r.RemoteAddr),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))
	})
}

// UserAgent returns the caller's User-Agent header, or "" when ClientInfo is
// not mounted.
func UserAgent(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.userAgent
	}
	return ""
}

// RemoteIP returns the caller's IP address, or "" when ClientInfo is not
// mounted.
func RemoteIP(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.remoteIP
	}
	return ""
}

// stripPort drops the :port suffix RemoteAddr usually carries. RealIP may
// have already replaced RemoteAddr with a bare IP, which SplitHostPort
// rejects, so that case falls through unchanged.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
