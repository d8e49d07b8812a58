package chi

import (
	"net/http"
	"strings"
)

// BearerAuthMiddleware validates Bearer tokens against the configured
// API keys. An empty key set disables authentication entirely. The
// health and metrics endpoints never require a token.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeBadRequest,
					"authorization requires a Bearer token")
				return
			}
			if _, known := keys[token]; !known {
				writeError(w, http.StatusUnauthorized, ErrorCodeBadRequest, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// openPath reports whether the path is served without authentication.
func openPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// bearerToken extracts a non-empty Bearer token from the request.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
