package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docchat-go/internal/logging"
)

// accessTokenParam is the query parameter accepted in place of the
// Authorization header. Browser EventSource clients cannot set headers, so
// GET /api/stream is usually authenticated this way.
const accessTokenParam = "access_token"

// authMiddleware enforces the DOCCHAT_API_KEY bearer token. An empty apiKey
// disables authentication; the server warns about it once at startup.
//
// The token is read from "Authorization: Bearer <key>", or from the
// access_token query parameter on GET requests. Failures get 401 with a
// Bearer challenge and a JSON error body. Token values are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token := requestToken(r)
		if token == "" {
			log.Warn("auth: missing credentials", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docchat"`)
			writeJSONError(w, "authorization required", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			log.Warn("auth: invalid token", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docchat" error="invalid_token"`)
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestToken returns the bearer token, falling back to the access_token
// query parameter for GET requests.
func requestToken(r *http.Request) string {
	if t := bearerToken(r); t != "" {
		return t
	}
	if r.Method == http.MethodGet {
		return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
