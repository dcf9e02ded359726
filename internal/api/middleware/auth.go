package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/core"
)

type contextKey string

const apiKeyIDKey contextKey = "api_key_id"

// Auth returns a middleware that validates the X-API-Key header against
// the api_keys table.
func Auth(keys *core.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			hash := sha256.Sum256([]byte(key))
			apiKey, err := keys.LookupByHash(r.Context(), hex.EncodeToString(hash[:]))
			if err != nil {
				response.WriteError(w, http.StatusInternalServerError, "api key lookup failed")
				return
			}
			if apiKey == nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyIDKey, apiKey.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyID returns the authenticated key's ID, or "" outside Auth.
func APIKeyID(ctx context.Context) string {
	if id, ok := ctx.Value(apiKeyIDKey).(string); ok {
		return id
	}
	return ""
}
