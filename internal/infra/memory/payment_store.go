package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PaymentStore is an in-memory implementation of app.PaymentStore.
type PaymentStore struct {
	mu       sync.RWMutex
	payments map[common.Hash]domain.PaymentRecord
	refs     map[string]common.Hash
	byPlayer map[common.Address][]common.Hash
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[common.Hash]domain.PaymentRecord),
		refs:     make(map[string]common.Hash),
		byPlayer: make(map[common.Address][]common.Hash),
	}
}

func (s *PaymentStore) Insert(_ context.Context, rec domain.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[rec.PaymentHash]; ok {
		return domain.ErrDuplicatePayment
	}
	if rec.Reference != "" {
		if _, ok := s.refs[rec.Reference]; ok {
			return domain.ErrPaymentReferenceUsed
		}
		s.refs[rec.Reference] = rec.PaymentHash
	}
	s.payments[rec.PaymentHash] = copyPayment(rec)
	s.byPlayer[rec.Player] = append(s.byPlayer[rec.Player], rec.PaymentHash)
	return nil
}

func (s *PaymentStore) Get(_ context.Context, paymentHash common.Hash) (domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.payments[paymentHash]
	if !ok {
		return domain.PaymentRecord{}, domain.ErrPaymentNotFound
	}
	return copyPayment(rec), nil
}

// MarkCompleted is the completed=false -> true gate; the check and the write share one lock.
func (s *PaymentStore) MarkCompleted(_ context.Context, paymentHash common.Hash, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[paymentHash]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if rec.Completed {
		return domain.ErrAlreadyCompleted
	}
	rec.Completed = true
	rec.Score = score
	rec.CompletedAt = at
	s.payments[paymentHash] = rec
	return nil
}

func (s *PaymentStore) ListByPlayer(_ context.Context, player common.Address) ([]domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := s.byPlayer[player]
	out := make([]domain.PaymentRecord, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, copyPayment(s.payments[h]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func copyPayment(rec domain.PaymentRecord) domain.PaymentRecord {
	if rec.Amount != nil {
		rec.Amount = new(big.Int).Set(rec.Amount)
	}
	return rec
}
