package app

import (
	"context"
	"errors"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
)

// PaymentBackend observes payments made by players outside this service.
// ref identifies the external payment (a transaction hash on chain).
type PaymentBackend interface {
	PaymentStatus(ctx context.Context, ref string, player common.Address) (domain.PaymentReceipt, error)
}

// RewardBackend submits reward mints and reports on them.
type RewardBackend interface {
	MintReward(ctx context.Context, player common.Address, score int, paymentHash common.Hash) (string, error)
	MintStatus(ctx context.Context, ref string) (domain.ConfirmationStatus, error)
}

// PollConfig bounds how often pending confirmations are re-checked.
// There is no overall deadline; waits end on confirmation, failure or cancellation.
type PollConfig struct {
	Initial time.Duration
	Max     time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Initial <= 0 {
		c.Initial = time.Second
	}
	if c.Max <= 0 {
		c.Max = 15 * time.Second
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	return c
}

var errStillPending = errors.New("confirmation pending")

// commitAttempts bounds retryCommit.
const commitAttempts = 4

// retryCommit runs commit until it succeeds, returns a backoff.Permanent error,
// has run commitAttempts times or ctx is done.
func retryCommit(ctx context.Context, cfg PollConfig, commit func() error, notify func(error, time.Duration)) error {
	cfg = cfg.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Initial
	b.MaxInterval = cfg.Max
	b.MaxElapsedTime = 0
	return backoff.RetryNotify(commit, backoff.WithContext(backoff.WithMaxRetries(b, commitAttempts-1), ctx), notify)
}

// awaitConfirmation polls until the status is confirmed (nil), failed
// (domain.ErrExternalConfirmationFailed) or ctx is done (ctx.Err()).
// Poll errors are treated as transient.
func awaitConfirmation(ctx context.Context, cfg PollConfig, poll func(context.Context) (domain.ConfirmationStatus, error), notify func(error, time.Duration)) error {
	cfg = cfg.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Initial
	b.MaxInterval = cfg.Max
	b.MaxElapsedTime = 0

	op := func() error {
		status, err := poll(ctx)
		if err != nil {
			return err
		}
		switch status {
		case domain.ConfirmationConfirmed:
			return nil
		case domain.ConfirmationFailed:
			return backoff.Permanent(domain.ErrExternalConfirmationFailed)
		default:
			return errStillPending
		}
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
