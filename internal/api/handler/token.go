package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/wpvault/wpvault/internal/api/middleware"
	"github.com/wpvault/wpvault/internal/api/request"
	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/token"
)

type Token struct {
	engine *token.Engine
	store  token.Store
}

func NewToken(engine *token.Engine, store token.Store) *Token {
	return &Token{engine: engine, store: store}
}

// Connect stores the session's token for a provider.
func (h *Token) Connect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	sessionID := mw.SessionID(r.Context())

	var req request.ConnectToken
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tok := token.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    req.ExpiresIn,
		TokenType:    req.TokenType,
	}
	if req.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Unix() + req.ExpiresIn
	}
	h.store.Put(sessionID, provider, tok)

	response.WriteJSON(w, http.StatusOK, map[string]any{"connected": true, "provider": provider})
}

// Disconnect drops the session's token for a provider.
func (h *Token) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	h.store.Delete(mw.SessionID(r.Context()), provider)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh exchanges the session's refresh token for a fresh access
// token and writes the result back to the store.
func (h *Token) Refresh(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	sessionID := mw.SessionID(r.Context())

	tok, ok := h.store.Get(sessionID, provider)
	if !ok {
		response.WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":          "no token stored for provider " + provider,
			"requiresReauth": true,
		})
		return
	}

	refreshed, err := h.engine.Refresh(r.Context(), provider, tok)
	if err != nil {
		h.writeRefreshError(w, sessionID, provider, err)
		return
	}

	h.store.Put(sessionID, provider, refreshed)

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": refreshed.AccessToken,
		"tokenType":   refreshed.TokenType,
		"expiresAt":   refreshed.ExpiresAt,
	})
}

func (h *Token) writeRefreshError(w http.ResponseWriter, sessionID, provider string, err error) {
	var refreshErr *token.RefreshError
	if !errors.As(err, &refreshErr) {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]any{
		"error":          refreshErr.Message,
		"errorType":      string(refreshErr.Type),
		"requiresReauth": refreshErr.RequiresReauth(),
	}

	var status int
	switch refreshErr.Type {
	case token.ErrInvalidGrant, token.ErrInvalidClient:
		// The stored token is dead; keeping it would make every
		// subsequent call fail the same way.
		h.store.Delete(sessionID, provider)
		status = http.StatusUnauthorized
	case token.ErrRateLimited:
		body["retryAfter"] = 60
		status = http.StatusTooManyRequests
	case token.ErrServer, token.ErrNetwork:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	response.WriteJSON(w, status, body)
}
