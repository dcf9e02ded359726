package token

import "sync"

// Store is a session-scoped record of provider tokens. The refresh
// engine never touches it; the route layer reads entries, overwrites
// them with refreshed tokens, and deletes them when re-authorization is
// required.
type Store interface {
	Get(sessionID, provider string) (Token, bool)
	Put(sessionID, provider string, tok Token)
	Delete(sessionID, provider string)
	DeleteSession(sessionID string)
}

// MemoryStore is the in-process Store used by the API server. Tokens
// live as long as the session cookie does.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]Token)}
}

func (s *MemoryStore) Get(sessionID, provider string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.sessions[sessionID][provider]
	return tok, ok
}

func (s *MemoryStore) Put(sessionID, provider string, tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] == nil {
		s.sessions[sessionID] = make(map[string]Token)
	}
	s.sessions[sessionID][provider] = tok
}

func (s *MemoryStore) Delete(sessionID, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[sessionID], provider)
	if len(s.sessions[sessionID]) == 0 {
		delete(s.sessions, sessionID)
	}
}

func (s *MemoryStore) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
