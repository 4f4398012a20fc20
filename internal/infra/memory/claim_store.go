package memory

import (
	"context"
	"sync"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// ClaimStore is an in-memory implementation of app.ClaimStore.
type ClaimStore struct {
	mu       sync.RWMutex
	claims   map[common.Hash]domain.RewardClaim
	byPlayer map[common.Address][]common.Hash
}

func NewClaimStore() *ClaimStore {
	return &ClaimStore{
		claims:   make(map[common.Hash]domain.RewardClaim),
		byPlayer: make(map[common.Address][]common.Hash),
	}
}

func (s *ClaimStore) Get(_ context.Context, paymentHash common.Hash) (domain.RewardClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[paymentHash]
	if !ok {
		return domain.RewardClaim{}, domain.ErrClaimNotFound
	}
	return claim, nil
}

func (s *ClaimStore) MarkClaimed(_ context.Context, claim domain.RewardClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.claims[claim.PaymentHash]; ok && existing.Claimed {
		return domain.ErrAlreadyClaimed
	}
	claim.Claimed = true
	s.claims[claim.PaymentHash] = claim
	s.byPlayer[claim.Player] = append(s.byPlayer[claim.Player], claim.PaymentHash)
	return nil
}

func (s *ClaimStore) CountClaimedSince(_ context.Context, player common.Address, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, h := range s.byPlayer[player] {
		if claim := s.claims[h]; claim.Claimed && !claim.ClaimedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *ClaimStore) ListByPlayer(_ context.Context, player common.Address) ([]domain.RewardClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := s.byPlayer[player]
	out := make([]domain.RewardClaim, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, s.claims[h])
	}
	return out, nil
}
