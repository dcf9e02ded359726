package middleware

import (
	"context"
	"net/http"

	"github.com/wpvault/wpvault/internal/platform"
)

const sessionCookie = "wpvault_session"

const sessionIDKey contextKey = "session_id"

// Session assigns each client a stable session id via cookie. The token
// store is scoped by this id, so connected provider tokens follow the
// browser session rather than the API key.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			sessionID = c.Value
		} else {
			sessionID = platform.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionID returns the request's session id, or "" outside Session.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
