package app

import (
	"context"
	"errors"
	"time"

	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// ClaimStore persists reward claims keyed by payment hash.
// MarkClaimed must be an atomic insert-if-absent.
type ClaimStore interface {
	Get(ctx context.Context, paymentHash common.Hash) (domain.RewardClaim, error)
	MarkClaimed(ctx context.Context, claim domain.RewardClaim) error
	CountClaimedSince(ctx context.Context, player common.Address, since time.Time) (int, error)
	ListByPlayer(ctx context.Context, player common.Address) ([]domain.RewardClaim, error)
}

// RewardPolicy holds the mint rules.
type RewardPolicy struct {
	Multiplier int
	DailyCap   int
	Window     time.Duration
}

func (p RewardPolicy) withDefaults() RewardPolicy {
	if p.Multiplier <= 0 {
		p.Multiplier = domain.DefaultRewardMultiplier
	}
	if p.DailyCap <= 0 {
		p.DailyCap = domain.DefaultDailyClaimCap
	}
	if p.Window <= 0 {
		p.Window = domain.DefaultClaimWindow
	}
	return p
}

// RewardAuthorizer decides whether a completed payment may mint tokens.
type RewardAuthorizer struct {
	payments PaymentStore
	claims   ClaimStore
	policy   RewardPolicy
	now      func() time.Time
	metrics  *metrics.Settlement
}

func NewRewardAuthorizer(payments PaymentStore, claims ClaimStore, policy RewardPolicy, m *metrics.Settlement) *RewardAuthorizer {
	return NewRewardAuthorizerWithClock(payments, claims, policy, m, time.Now)
}

// NewRewardAuthorizerWithClock lets tests move the claim window.
func NewRewardAuthorizerWithClock(payments PaymentStore, claims ClaimStore, policy RewardPolicy, m *metrics.Settlement, now func() time.Time) *RewardAuthorizer {
	return &RewardAuthorizer{
		payments: payments,
		claims:   claims,
		policy:   policy.withDefaults(),
		now:      now,
		metrics:  m,
	}
}

func (a *RewardAuthorizer) Policy() RewardPolicy {
	return a.policy
}

// TokensFor converts a score to reward tokens.
func (a *RewardAuthorizer) TokensFor(score int) int64 {
	return int64(score) * int64(a.policy.Multiplier)
}

// Authorize approves a mint for a completed payment owned by player.
func (a *RewardAuthorizer) Authorize(ctx context.Context, paymentHash common.Hash, player common.Address, score int) (domain.AuthorizationDecision, error) {
	decision, err := a.authorize(ctx, paymentHash, player, score)
	a.metrics.Authorization(authorizationResult(err))
	return decision, err
}

func (a *RewardAuthorizer) authorize(ctx context.Context, paymentHash common.Hash, player common.Address, score int) (domain.AuthorizationDecision, error) {
	rec, err := a.payments.Get(ctx, paymentHash)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return domain.AuthorizationDecision{}, domain.ErrPaymentNotCompleted
		}
		return domain.AuthorizationDecision{}, err
	}
	if !rec.Completed || rec.Player != player {
		return domain.AuthorizationDecision{}, domain.ErrPaymentNotCompleted
	}
	if score != rec.Score {
		return domain.AuthorizationDecision{}, domain.ErrScoreMismatch
	}

	claim, err := a.claims.Get(ctx, paymentHash)
	switch {
	case err == nil && claim.Claimed:
		return domain.AuthorizationDecision{}, domain.ErrAlreadyClaimed
	case err != nil && !errors.Is(err, domain.ErrClaimNotFound):
		return domain.AuthorizationDecision{}, err
	}

	now := a.now()
	count, err := a.claims.CountClaimedSince(ctx, player, now.Add(-a.policy.Window))
	if err != nil {
		return domain.AuthorizationDecision{}, err
	}
	if count >= a.policy.DailyCap {
		return domain.AuthorizationDecision{}, domain.ErrRateLimited
	}

	return domain.AuthorizationDecision{
		Approved:      true,
		Player:        player,
		PaymentHash:   paymentHash,
		Score:         score,
		TokensAwarded: a.TokensFor(score),
		DecidedAt:     now,
	}, nil
}

// RecordClaim marks the reward for paymentHash as claimed; a second call fails
// with domain.ErrAlreadyClaimed. mintRef is the confirmed mint transaction, if any.
func (a *RewardAuthorizer) RecordClaim(ctx context.Context, paymentHash common.Hash, mintRef string) error {
	rec, err := a.payments.Get(ctx, paymentHash)
	if err != nil {
		return err
	}
	if !rec.Completed {
		return domain.ErrPaymentNotCompleted
	}
	err = a.claims.MarkClaimed(ctx, domain.RewardClaim{
		Player:        rec.Player,
		PaymentHash:   paymentHash,
		Score:         rec.Score,
		TokensAwarded: a.TokensFor(rec.Score),
		Claimed:       true,
		ClaimedAt:     a.now(),
		MintRef:       mintRef,
	})
	if err != nil {
		return err
	}
	a.metrics.ClaimRecorded()
	return nil
}

// Claim returns the recorded claim for a payment hash.
func (a *RewardAuthorizer) Claim(ctx context.Context, paymentHash common.Hash) (domain.RewardClaim, error) {
	return a.claims.Get(ctx, paymentHash)
}

// PlayerClaims lists a player's recorded claims and how many fall inside the current window.
func (a *RewardAuthorizer) PlayerClaims(ctx context.Context, player common.Address) ([]domain.RewardClaim, int, error) {
	claims, err := a.claims.ListByPlayer(ctx, player)
	if err != nil {
		return nil, 0, err
	}
	count, err := a.claims.CountClaimedSince(ctx, player, a.now().Add(-a.policy.Window))
	if err != nil {
		return nil, 0, err
	}
	return claims, count, nil
}

func authorizationResult(err error) string {
	switch {
	case err == nil:
		return "approved"
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		return "payment_not_completed"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrScoreMismatch):
		return "score_mismatch"
	default:
		return "error"
	}
}
