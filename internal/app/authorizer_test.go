package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func completedPayment(t *testing.T, f *fixture, player common.Address, score int) common.Hash {
	t.Helper()
	ctx := context.Background()
	rec, err := f.ledger.RecordPayment(ctx, player, domain.DefaultQuizFee())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if err := f.ledger.MarkCompleted(ctx, rec.PaymentHash, score); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	return rec.PaymentHash
}

func TestAuthorizeApprovesCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	hash := completedPayment(t, f, alice, 70)

	decision, err := f.authorizer.Authorize(ctx, hash, alice, 70)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !decision.Approved || decision.TokensAwarded != 700 || decision.PaymentHash != hash {
		t.Fatalf("unexpected decision %+v", decision)
	}

	if err := f.authorizer.RecordClaim(ctx, hash, "0xmint"); err != nil {
		t.Fatalf("record claim: %v", err)
	}
	if err := f.authorizer.RecordClaim(ctx, hash, "0xmint"); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	if _, err := f.authorizer.Authorize(ctx, hash, alice, 70); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}

	claim, err := f.authorizer.Claim(ctx, hash)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claim.Claimed || claim.TokensAwarded != 700 || claim.MintRef != "0xmint" {
		t.Fatalf("unexpected claim %+v", claim)
	}
}

func TestAuthorizeRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.authorizer.Authorize(ctx, common.HexToHash("0x01"), alice, 0); !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("unknown hash: expected not completed, got %v", err)
	}

	rec, err := f.ledger.RecordPayment(ctx, alice, domain.DefaultQuizFee())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if _, err := f.authorizer.Authorize(ctx, rec.PaymentHash, alice, 0); !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("open payment: expected not completed, got %v", err)
	}
	if err := f.authorizer.RecordClaim(ctx, rec.PaymentHash, ""); !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("open payment: expected claim refused, got %v", err)
	}

	hash := completedPayment(t, f, alice, 50)
	if _, err := f.authorizer.Authorize(ctx, hash, bob, 50); !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("other player: expected not completed, got %v", err)
	}
	if _, err := f.authorizer.Authorize(ctx, hash, alice, 100); !errors.Is(err, domain.ErrScoreMismatch) {
		t.Fatalf("inflated score: expected mismatch, got %v", err)
	}
}

func TestAuthorizeEnforcesRollingDailyCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// The fixture caps claims at 3 per window.
	for i := 0; i < 3; i++ {
		hash := completedPayment(t, f, alice, 10)
		if _, err := f.authorizer.Authorize(ctx, hash, alice, 10); err != nil {
			t.Fatalf("authorize %d: %v", i, err)
		}
		if err := f.authorizer.RecordClaim(ctx, hash, ""); err != nil {
			t.Fatalf("record claim %d: %v", i, err)
		}
		f.clock.Advance(time.Hour)
	}

	fourth := completedPayment(t, f, alice, 10)
	if _, err := f.authorizer.Authorize(ctx, fourth, alice, 10); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	// Other players are unaffected.
	other := completedPayment(t, f, bob, 10)
	if _, err := f.authorizer.Authorize(ctx, other, bob, 10); err != nil {
		t.Fatalf("authorize bob: %v", err)
	}

	// The first claim leaves the window 24h after it was made.
	f.clock.Advance(domain.DefaultClaimWindow - 3*time.Hour + time.Second)
	if _, err := f.authorizer.Authorize(ctx, fourth, alice, 10); err != nil {
		t.Fatalf("expected claim allowed once the window rolls, got %v", err)
	}

	_, inWindow, err := f.authorizer.PlayerClaims(ctx, alice)
	if err != nil {
		t.Fatalf("player claims: %v", err)
	}
	if inWindow != 2 {
		t.Fatalf("expected 2 claims in window, got %d", inWindow)
	}
}

func TestZeroScoreAuthorizesZeroTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	hash := completedPayment(t, f, alice, 0)

	decision, err := f.authorizer.Authorize(ctx, hash, alice, 0)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.TokensAwarded != 0 {
		t.Fatalf("expected zero tokens, got %d", decision.TokensAwarded)
	}
}
