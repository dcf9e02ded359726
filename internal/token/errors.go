package token

import (
	"fmt"
	"net/http"
)

// ErrorType tags a refresh failure for UI messaging and retry policy.
type ErrorType string

const (
	// ErrInvalidGrant means the refresh token was revoked or expired.
	// The stored token must be discarded and the user re-authorized.
	ErrInvalidGrant ErrorType = "invalid_grant"
	// ErrInvalidClient means the application credentials are
	// misconfigured. The stored token is kept.
	ErrInvalidClient ErrorType = "invalid_client"
	// ErrRateLimited is transient; callers back off and retry.
	ErrRateLimited ErrorType = "rate_limited"
	// ErrServer is a provider-side failure, safe to retry.
	ErrServer ErrorType = "server_error"
	// ErrNetwork means no response was received, safe to retry.
	ErrNetwork ErrorType = "network_error"
	// ErrUnknown is the catch-all, logged with full context.
	ErrUnknown ErrorType = "unknown_error"
)

// RefreshError is the structured failure of one refresh attempt.
// Transient; never persisted.
type RefreshError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh (%s): %s: %s: %v", e.Provider, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("token refresh (%s): %s: %s", e.Provider, e.Type, e.Message)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RequiresReauth reports whether the stored token is beyond saving and
// the user has to reconnect the account.
func (e *RefreshError) RequiresReauth() bool {
	return e.Type == ErrInvalidGrant || e.Type == ErrInvalidClient
}

// classifyResponse maps an HTTP status and the provider's OAuth error
// code to an ErrorType. The mapping is load-bearing: the route layer
// and UI dispatch on it without string matching.
func classifyResponse(status int, oauthErrCode string) ErrorType {
	switch {
	case status == http.StatusBadRequest && (oauthErrCode == "invalid_grant" || oauthErrCode == "invalid_request"):
		return ErrInvalidGrant
	case status == http.StatusUnauthorized && oauthErrCode == "invalid_client":
		return ErrInvalidClient
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrUnknown
	}
}
