package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions and their timers live in a local map; answers must reach the
//     instance that started the session.
//   - Redis holds a per-payment claim key (SETNX with TTL) so that two
//     instances never run a session for the same payment.
//   - The TTL outlives the quiz deadline, so a crashed instance frees the key on its own.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[common.Hash]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[common.Hash]*app.Session),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *app.Session) error {
	hash := session.PaymentHash()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[hash]; ok {
		return domain.ErrSessionAlreadyActive
	}
	ok, err := s.client.SetNX(ctx, sessionKey(hash), session.Player().Hex(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim session key: %w", err)
	}
	if !ok {
		return domain.ErrSessionAlreadyActive
	}
	s.sessions[hash] = session
	return nil
}

func (s *SessionStore) Get(paymentHash common.Hash) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[paymentHash]
	return session, ok
}

// Delete drops the local session and its Redis key. The local entry is removed
// even when Del fails; the key then blocks other instances until its TTL.
func (s *SessionStore) Delete(ctx context.Context, paymentHash common.Hash) error {
	s.mu.Lock()
	_, ok := s.sessions[paymentHash]
	delete(s.sessions, paymentHash)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.client.Del(ctx, sessionKey(paymentHash)).Err(); err != nil {
		return fmt.Errorf("release session key %s: %w", paymentHash.Hex(), err)
	}
	return nil
}
