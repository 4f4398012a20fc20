package app_test

import (
	"context"
	"errors"
	"testing"

	"celo-quiz-settlement/internal/domain"
)

// One paid attempt funds one completion and one claim.
func TestPaidAttemptSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec, err := f.ledger.RecordPayment(ctx, alice, domain.DefaultQuizFee())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if rec.Completed {
		t.Fatalf("new payment must not be completed")
	}

	session, err := f.quiz.Start(ctx, rec.PaymentHash, alice)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < domain.QuestionCount; i++ {
		selected := wrongAnswer(i)
		if i == 0 {
			selected = 0
		}
		if _, err := session.Submit(ctx, selected); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	if session.State() != domain.SessionCompleted {
		t.Fatalf("expected completed session, got %s", session.State())
	}
	if _, err := session.Submit(ctx, 0); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected session not active, got %v", err)
	}

	stored, err := f.ledger.GetPayment(ctx, rec.PaymentHash)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if !stored.Completed || stored.Score != 10 {
		t.Fatalf("unexpected ledger record %+v", stored)
	}
	if err := f.quiz.Release(ctx, rec.PaymentHash); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.quiz.Start(ctx, rec.PaymentHash, alice); !errors.Is(err, domain.ErrPaymentAlreadyConsumed) {
		t.Fatalf("expected payment consumed, got %v", err)
	}

	decision, err := f.authorizer.Authorize(ctx, rec.PaymentHash, alice, 10)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.TokensAwarded != 100 {
		t.Fatalf("expected 100 tokens, got %d", decision.TokensAwarded)
	}
	if err := f.authorizer.RecordClaim(ctx, rec.PaymentHash, ""); err != nil {
		t.Fatalf("record claim: %v", err)
	}
	if err := f.authorizer.RecordClaim(ctx, rec.PaymentHash, ""); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
}

func TestAuthorizeRequiresCompletionForAnyScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	rec, err := f.ledger.RecordPayment(ctx, alice, domain.DefaultQuizFee())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	for score := 0; score <= domain.MaxScore; score += domain.PointsPerCorrect {
		if _, err := f.authorizer.Authorize(ctx, rec.PaymentHash, alice, score); !errors.Is(err, domain.ErrPaymentNotCompleted) {
			t.Fatalf("score %d: expected payment not completed, got %v", score, err)
		}
	}
}
