package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/wpvault/wpvault/internal/config"
)

var refreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "token_refreshes_total",
		Help: "Total number of OAuth token refresh attempts",
	},
	[]string{"provider", "outcome"},
)

// Engine exchanges refresh tokens for new access tokens. Concurrent
// refreshes for the same provider+refresh-token pair share a single
// outbound exchange; the in-flight entry is dropped when the exchange
// settles, success or failure.
//
// The engine never writes to a token store. Callers persist the
// returned token and, on invalid_grant/invalid_client, discard the
// stale entry themselves.
type Engine struct {
	clients    map[string]config.OAuthClient
	tokenURLs  map[string]string
	httpClient *http.Client
	logger     zerolog.Logger
	inflight   singleflight.Group
}

func NewEngine(clients map[string]config.OAuthClient, httpClient *http.Client, logger zerolog.Logger) *Engine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Engine{
		clients:    clients,
		tokenURLs:  defaultTokenURLs(),
		httpClient: httpClient,
		logger:     logger.With().Str("component", "token-engine").Logger(),
	}
}

// RegisterProvider adds or overrides the token endpoint for a provider
// key. Used for additional providers and by tests.
func (e *Engine) RegisterProvider(provider, tokenURL string) {
	e.tokenURLs[provider] = tokenURL
}

// Refresh exchanges tok's refresh token for a new access token.
// Callers must replace their stored token with the entire returned
// value: providers that omit refresh_token in the response rely on the
// engine carrying the original one forward.
func (e *Engine) Refresh(ctx context.Context, provider string, tok Token) (Token, error) {
	tokenURL, ok := e.tokenURLs[provider]
	if !ok {
		return Token{}, &RefreshError{
			Type:     ErrUnknown,
			Provider: provider,
			Message:  "unsupported provider",
		}
	}

	// Precondition failures never reach the network.
	if tok.RefreshToken == "" {
		return Token{}, &RefreshError{
			Type:     ErrInvalidGrant,
			Provider: provider,
			Message:  "no refresh token available",
		}
	}
	creds, ok := e.clients[provider]
	if !ok || creds.ClientID == "" || creds.ClientSecret == "" {
		return Token{}, &RefreshError{
			Type:     ErrInvalidClient,
			Provider: provider,
			Message:  "client credentials not configured",
		}
	}

	key := provider + "_" + tok.RefreshToken
	v, err, shared := e.inflight.Do(key, func() (any, error) {
		return e.exchange(ctx, provider, tokenURL, creds, tok)
	})
	if err != nil {
		refreshesTotal.WithLabelValues(provider, "failure").Inc()
		return Token{}, err
	}
	if shared {
		e.logger.Debug().Str("provider", provider).Msg("refresh joined in-flight exchange")
	}
	refreshesTotal.WithLabelValues(provider, "success").Inc()
	return v.(Token), nil
}

func (e *Engine) exchange(ctx context.Context, provider, tokenURL string, creds config.OAuthClient, tok Token) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tok.RefreshToken)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &RefreshError{Type: ErrUnknown, Provider: provider, Message: "build refresh request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn().Str("provider", provider).Err(err).Msg("token endpoint unreachable")
		return Token{}, &RefreshError{Type: ErrNetwork, Provider: provider, Message: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &RefreshError{Type: ErrNetwork, Provider: provider, Message: "read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		// Best effort; some providers return non-JSON error bodies.
		_ = json.Unmarshal(body, &oauthErr)

		errType := classifyResponse(resp.StatusCode, oauthErr.Error)
		msg := oauthErr.ErrorDescription
		if msg == "" {
			msg = fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode)
		}
		e.logger.Warn().
			Str("provider", provider).
			Int("status", resp.StatusCode).
			Str("oauth_error", oauthErr.Error).
			Str("error_type", string(errType)).
			Msg("token refresh rejected")
		return Token{}, &RefreshError{Type: errType, Provider: provider, Message: msg}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, &RefreshError{Type: ErrUnknown, Provider: provider, Message: "decode token response", Err: err}
	}
	if payload.AccessToken == "" {
		return Token{}, &RefreshError{Type: ErrUnknown, Provider: provider, Message: "token response missing access_token"}
	}

	next := Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
		TokenType:    payload.TokenType,
	}
	// Carry the original refresh token forward when the provider omits
	// it from the response.
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.ExpiresIn > 0 {
		next.ExpiresAt = time.Now().Unix() + next.ExpiresIn
	}

	e.logger.Info().Str("provider", provider).Int64("expires_in", next.ExpiresIn).Msg("token refreshed")
	return next, nil
}
