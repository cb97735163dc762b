package session

import (
	"context"
	"sync"
)

// Static maps fixed tokens to users. It is meant for local development.
type Static struct {
	listeners

	mu     sync.RWMutex
	tokens map[string]User
}

// NewStatic creates a provider from a token to user map.
func NewStatic(tokens map[string]User) *Static {
	cp := make(map[string]User, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &Static{tokens: cp}
}

func (s *Static) Resolve(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	u, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok || token == "" {
		return nil, ErrNoSession
	}
	return &Session{User: u, Token: token}, nil
}

func (s *Static) Subscribe(fn func(Event)) func() {
	return s.listeners.subscribe(fn)
}

// SignOut drops every token of the user.
func (s *Static) SignOut(_ context.Context, userID string) error {
	s.mu.Lock()
	for tok, u := range s.tokens {
		if u.ID == userID {
			delete(s.tokens, tok)
		}
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventSignedOut, UserID: userID})
	return nil
}
