package memory

import (
	"context"
	"sync"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[common.Hash]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[common.Hash]*app.Session),
	}
}

// Create registers a session; a payment hash holds at most one until Delete.
func (s *SessionStore) Create(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.PaymentHash()]; ok {
		return domain.ErrSessionAlreadyActive
	}
	s.sessions[session.PaymentHash()] = session
	return nil
}

func (s *SessionStore) Get(paymentHash common.Hash) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[paymentHash]
	return session, ok
}

func (s *SessionStore) Delete(_ context.Context, paymentHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, paymentHash)
	return nil
}

// Len reports how many sessions are held.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
