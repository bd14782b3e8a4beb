package api

import (
	"net"
	"net/http"
)

// rateLimitMutations applies the per-client rate limit to mutating requests.
// Reads stay unthrottled so availability polling never starves the UI.
func (s *Server) rateLimitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if !s.limiter.Allow(clientKey(r)) {
			s.logger.Warn("rate limit exceeded",
				"client", clientKey(r),
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey extracts the client address for rate limiting. RealIP middleware
// has already folded proxy headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
