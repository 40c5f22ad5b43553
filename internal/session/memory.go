package session

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	byToken     map[string]Session
	byPrincipal map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:     make(map[string]Session),
		byPrincipal: make(map[int64]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.byPrincipal[sess.PrincipalID]; ok {
		delete(s.byToken, previous)
	}
	s.byToken[sess.TokenID] = sess
	s.byPrincipal[sess.PrincipalID] = sess.TokenID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tokenID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byToken[tokenID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byToken[tokenID]
	if !ok {
		return ErrNotFound
	}
	delete(s.byToken, tokenID)
	if s.byPrincipal[sess.PrincipalID] == tokenID {
		delete(s.byPrincipal, sess.PrincipalID)
	}
	return nil
}
