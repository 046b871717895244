package authstate

import (
	"context"
	"sync"
)

// TokenSource supplies the session token attached to backend requests.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token
type StaticToken string

// Token satisfies the TokenSource interface.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// TokenStore is an in-memory TokenSource the client updates after a session
// is created and clears after logout.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store holding token
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token satisfies the TokenSource interface.
func (s *TokenStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Set replaces the stored token
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear removes the stored token
func (s *TokenStore) Clear() {
	s.Set("")
}
