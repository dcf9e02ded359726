// Package token implements the OAuth token lifecycle for storage
// providers: a session-scoped token store, a proactive expiry check,
// and a deduplicated refresh engine with a fixed error taxonomy.
package token

import "time"

// Token is an OAuth access token plus the fields needed to refresh it.
// ExpiresAt is derived from ExpiresIn at refresh time, never supplied
// by callers. A token without ExpiresAt is treated as already expired.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// DefaultExpiryBuffer is the lead time before actual expiry at which a
// token is treated as expired, so it gets refreshed before it can
// expire mid-operation.
const DefaultExpiryBuffer = 300 * time.Second

// IsExpired reports whether the token needs a refresh. True when
// ExpiresAt is unset (fail-safe) or when now is within buffer of it.
func IsExpired(tok Token, buffer time.Duration) bool {
	return isExpiredAt(tok, buffer, time.Now())
}

func isExpiredAt(tok Token, buffer time.Duration, now time.Time) bool {
	if tok.ExpiresAt == 0 {
		return true
	}
	return !now.Before(time.Unix(tok.ExpiresAt, 0).Add(-buffer))
}
