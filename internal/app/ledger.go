package app

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// PaymentStore persists payment records keyed by payment hash.
// MarkCompleted must be an atomic compare-and-set on the completed flag.
type PaymentStore interface {
	// Insert stores a new record. It fails with domain.ErrDuplicatePayment when the
	// hash exists and domain.ErrPaymentReferenceUsed when a non-empty reference was seen before.
	Insert(ctx context.Context, rec domain.PaymentRecord) error
	Get(ctx context.Context, paymentHash common.Hash) (domain.PaymentRecord, error)
	MarkCompleted(ctx context.Context, paymentHash common.Hash, score int, at time.Time) error
	ListByPlayer(ctx context.Context, player common.Address) ([]domain.PaymentRecord, error)
}

// PaymentLedger is the authoritative record of quiz payments.
type PaymentLedger struct {
	store   PaymentStore
	fee     *big.Int
	now     func() time.Time
	metrics *metrics.Settlement
}

func NewPaymentLedger(store PaymentStore, fee *big.Int, m *metrics.Settlement) *PaymentLedger {
	return NewPaymentLedgerWithClock(store, fee, m, time.Now)
}

// NewPaymentLedgerWithClock is used by tests for deterministic timestamps.
func NewPaymentLedgerWithClock(store PaymentStore, fee *big.Int, m *metrics.Settlement, now func() time.Time) *PaymentLedger {
	if fee == nil {
		fee = domain.DefaultQuizFee()
	}
	return &PaymentLedger{store: store, fee: new(big.Int).Set(fee), now: now, metrics: m}
}

// Fee returns a copy of the configured quiz fee.
func (l *PaymentLedger) Fee() *big.Int {
	return new(big.Int).Set(l.fee)
}

// RecordPayment accepts a payment of exactly the quiz fee and issues a fresh payment hash.
func (l *PaymentLedger) RecordPayment(ctx context.Context, player common.Address, amount *big.Int) (domain.PaymentRecord, error) {
	return l.RecordConfirmedPayment(ctx, player, domain.PaymentReceipt{Amount: amount})
}

// RecordConfirmedPayment is RecordPayment for a payment observed externally.
// A receipt carrying the contract's payment hash is recorded under that hash,
// so the reward contract later recognizes it. A reference or contract hash
// funds at most one record.
func (l *PaymentLedger) RecordConfirmedPayment(ctx context.Context, player common.Address, receipt domain.PaymentReceipt) (domain.PaymentRecord, error) {
	amount, ref := receipt.Amount, receipt.Reference
	if amount == nil || amount.Cmp(l.fee) != 0 {
		return domain.PaymentRecord{}, domain.ErrInvalidAmount
	}

	now := l.now()
	if receipt.PaymentHash != (common.Hash{}) {
		rec := domain.PaymentRecord{
			Player:      player,
			Amount:      new(big.Int).Set(amount),
			PaymentHash: receipt.PaymentHash,
			Reference:   ref,
			Timestamp:   now,
		}
		err := l.store.Insert(ctx, rec)
		if errors.Is(err, domain.ErrDuplicatePayment) {
			return domain.PaymentRecord{}, domain.ErrPaymentReferenceUsed
		}
		if err != nil {
			return domain.PaymentRecord{}, err
		}
		l.metrics.PaymentRecorded()
		return rec, nil
	}
	// A collision needs identical uuid entropy; retry anyway rather than overwrite.
	for attempt := 0; attempt < 3; attempt++ {
		rec := domain.PaymentRecord{
			Player:      player,
			Amount:      new(big.Int).Set(amount),
			PaymentHash: newPaymentHash(player, amount, now),
			Reference:   ref,
			Timestamp:   now,
		}
		err := l.store.Insert(ctx, rec)
		if errors.Is(err, domain.ErrDuplicatePayment) {
			continue
		}
		if err != nil {
			return domain.PaymentRecord{}, err
		}
		l.metrics.PaymentRecorded()
		return rec, nil
	}
	return domain.PaymentRecord{}, fmt.Errorf("record payment: %w", domain.ErrDuplicatePayment)
}

// GetPayment returns the record for a payment hash or domain.ErrPaymentNotFound.
func (l *PaymentLedger) GetPayment(ctx context.Context, paymentHash common.Hash) (domain.PaymentRecord, error) {
	return l.store.Get(ctx, paymentHash)
}

// MarkCompleted flips completed to true and stores the score, once per payment hash.
func (l *PaymentLedger) MarkCompleted(ctx context.Context, paymentHash common.Hash, score int) error {
	if score < 0 || score > domain.MaxScore {
		return fmt.Errorf("mark completed: score %d out of range", score)
	}
	return l.store.MarkCompleted(ctx, paymentHash, score, l.now())
}

// PlayerPayments lists a player's payments, newest last.
func (l *PaymentLedger) PlayerPayments(ctx context.Context, player common.Address) ([]domain.PaymentRecord, error) {
	return l.store.ListByPlayer(ctx, player)
}

func newPaymentHash(player common.Address, amount *big.Int, at time.Time) common.Hash {
	entropy := uuid.New()
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	return crypto.Keccak256Hash(player.Bytes(), common.LeftPadBytes(amount.Bytes(), 32), ts[:], entropy[:])
}
