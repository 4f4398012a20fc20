package app_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func TestRecordPaymentRequiresExactFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(1), new(big.Int).Add(domain.DefaultQuizFee(), big.NewInt(1))} {
		if _, err := f.ledger.RecordPayment(ctx, alice, amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("amount %v: expected invalid amount, got %v", amount, err)
		}
	}

	seen := make(map[common.Hash]bool)
	for i := 0; i < 50; i++ {
		rec, err := f.ledger.RecordPayment(ctx, alice, domain.DefaultQuizFee())
		if err != nil {
			t.Fatalf("record payment: %v", err)
		}
		if rec.Completed {
			t.Fatalf("expected fresh record to be uncompleted")
		}
		if seen[rec.PaymentHash] {
			t.Fatalf("payment hash %s reused", rec.PaymentHash.Hex())
		}
		seen[rec.PaymentHash] = true
	}
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec, err := f.ledger.RecordPayment(ctx, alice, domain.DefaultQuizFee())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if err := f.ledger.MarkCompleted(ctx, rec.PaymentHash, 70); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	for _, score := range []int{0, 70, 100} {
		if err := f.ledger.MarkCompleted(ctx, rec.PaymentHash, score); !errors.Is(err, domain.ErrAlreadyCompleted) {
			t.Fatalf("expected already completed, got %v", err)
		}
	}

	got, err := f.ledger.GetPayment(ctx, rec.PaymentHash)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if !got.Completed || got.Score != 70 {
		t.Fatalf("expected completed with score 70, got %+v", got)
	}

	if err := f.ledger.MarkCompleted(ctx, common.HexToHash("0xdead"), 10); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.ledger.GetPayment(ctx, common.HexToHash("0xdead")); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordConfirmedPaymentRejectsReplayedReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.ledger.RecordConfirmedPayment(ctx, alice, domain.PaymentReceipt{Amount: domain.DefaultQuizFee(), Reference: "0xtx1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.ledger.RecordConfirmedPayment(ctx, alice, domain.PaymentReceipt{Amount: domain.DefaultQuizFee(), Reference: "0xtx1"}); !errors.Is(err, domain.ErrPaymentReferenceUsed) {
		t.Fatalf("expected reference reuse rejected, got %v", err)
	}
}

func TestRecordConfirmedPaymentKeepsContractHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	contractHash := common.HexToHash("0xc0ffee")

	rec, err := f.ledger.RecordConfirmedPayment(ctx, alice, domain.PaymentReceipt{
		Amount:      domain.DefaultQuizFee(),
		Reference:   "0xtx1",
		PaymentHash: contractHash,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.PaymentHash != contractHash {
		t.Fatalf("expected contract hash %s, got %s", contractHash.Hex(), rec.PaymentHash.Hex())
	}
	if _, err := f.ledger.GetPayment(ctx, contractHash); err != nil {
		t.Fatalf("get by contract hash: %v", err)
	}

	// same contract payment presented under another reference
	_, err = f.ledger.RecordConfirmedPayment(ctx, alice, domain.PaymentReceipt{
		Amount:      domain.DefaultQuizFee(),
		Reference:   "0xtx2",
		PaymentHash: contractHash,
	})
	if !errors.Is(err, domain.ErrPaymentReferenceUsed) {
		t.Fatalf("expected reused contract hash rejected, got %v", err)
	}
}
