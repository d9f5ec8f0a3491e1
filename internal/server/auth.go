package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/damienmail/damien-mcp-server/internal/dispatch"
)

// APIKeyHeader is the request header carrying the shared secret.
const APIKeyHeader = "X-API-Key"

// apiKeyMiddleware rejects requests whose X-API-Key header does not match
// the configured key. Both sides are hashed before comparison so the check
// runs in constant time regardless of key length.
func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(apiKey))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := sha256.Sum256([]byte(r.Header.Get(APIKeyHeader)))
		if subtle.ConstantTimeCompare(expected[:], presented[:]) != 1 {
			writeJSON(w, http.StatusUnauthorized, dispatch.ExecutionResult{
				IsError:      true,
				ErrorCode:    dispatch.CodeAuthError,
				ErrorMessage: "invalid or missing API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
