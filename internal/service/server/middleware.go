package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"anon_messenger/internal/service/identity"
	"anon_messenger/internal/utils/log"

	"go.uber.org/zap"
)

type ctxKey int

const principalKey ctxKey = iota

// publicPaths may be reached without a code. The websocket handshake does
// its own binding; registration and health take no identity.
var publicPaths = []string{
	"/api/identity/register",
	"/ws",
	"/api/health",
}

// authMiddleware validates the code header on every protected request and
// renews the session TTL as a side effect, so any authenticated activity
// keeps the session alive.
func (s *HttpServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		code := strings.TrimSpace(r.Header.Get(CodeHeader))
		if code == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized",
				"Missing "+CodeHeader+" header")
			return
		}

		err := s.identityService.ValidateAndRenew(r.Context(), code)
		switch {
		case err == nil:
			ctx := context.WithValue(r.Context(), principalKey, code)
			next.ServeHTTP(w, r.WithContext(ctx))
		case errors.Is(err, identity.ErrStoreUnavailable):
			log.Error("session store unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Unable to reach the session store. Please try again later.")
		default:
			writeError(w, http.StatusUnauthorized, "Unauthorized",
				"Invalid or expired anonymous code")
		}
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Principal returns the authenticated identity code bound to the request by
// the middleware, or "" on public paths.
func Principal(r *http.Request) string {
	code, _ := r.Context().Value(principalKey).(string)
	return code
}

// clientIP resolves the network origin for registration rate limiting:
// X-Forwarded-For, then X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" || strings.EqualFold(ip, "unknown") {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" || strings.EqualFold(ip, "unknown") {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	return strings.TrimSpace(ip)
}
