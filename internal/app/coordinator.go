package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CoordinatorConfig tunes the settlement coordinator.
type CoordinatorConfig struct {
	Poll PollConfig
	Now  func() time.Time
}

// SettlementCoordinator drives one play-through per settlement: payment
// confirmation, the quiz session, reward authorization and mint confirmation.
// External confirmations are awaited in background goroutines; callers observe
// progress through Subscribe or Await.
type SettlementCoordinator struct {
	ledger     *PaymentLedger
	quiz       *QuizService
	authorizer *RewardAuthorizer
	payments   PaymentBackend
	rewards    RewardBackend
	poll       PollConfig
	now        func() time.Time
	log        *logrus.Entry
	metrics    *metrics.Settlement

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	settlements map[string]*settlement
}

func NewSettlementCoordinator(
	ledger *PaymentLedger,
	quiz *QuizService,
	authorizer *RewardAuthorizer,
	payments PaymentBackend,
	rewards RewardBackend,
	cfg CoordinatorConfig,
	log *logrus.Entry,
	m *metrics.Settlement,
) *SettlementCoordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SettlementCoordinator{
		ledger:      ledger,
		quiz:        quiz,
		authorizer:  authorizer,
		payments:    payments,
		rewards:     rewards,
		poll:        cfg.Poll.withDefaults(),
		now:         cfg.Now,
		log:         log,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
		settlements: make(map[string]*settlement),
	}
}

// RequestPayment opens a settlement for an external payment identified by ref
// and waits for its confirmation in the background.
func (c *SettlementCoordinator) RequestPayment(_ context.Context, player common.Address, ref string) (domain.Settlement, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Settlement{}, errors.New("payment reference required")
	}
	if player == (common.Address{}) {
		return domain.Settlement{}, errors.New("player address required")
	}

	st := c.open(player, domain.StageAwaitingPayment)
	waitCtx, cancel := context.WithCancel(c.ctx)

	st.mu.Lock()
	st.view.PaymentRef = ref
	st.cancel = cancel
	snap := st.snapshotLocked()
	st.mu.Unlock()

	c.wg.Add(1)
	go c.awaitPayment(waitCtx, st, player, ref)
	return snap, nil
}

// Resume reopens an unconsumed payment, e.g. one whose earlier settlement was abandoned.
func (c *SettlementCoordinator) Resume(ctx context.Context, player common.Address, paymentHash common.Hash) (domain.Settlement, error) {
	rec, err := c.ledger.GetPayment(ctx, paymentHash)
	if err != nil {
		return domain.Settlement{}, err
	}
	if rec.Player != player {
		return domain.Settlement{}, domain.ErrPlayerMismatch
	}
	if rec.Completed {
		return domain.Settlement{}, domain.ErrPaymentAlreadyConsumed
	}

	st := c.open(player, domain.StagePaid)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.view.PaymentHash = rec.PaymentHash
	st.view.PaymentRef = rec.Reference
	return st.snapshotLocked(), nil
}

// Start begins the quiz for a paid settlement. The settlement lock is not held
// while the session is opened; starting blocks a concurrent Start or Abandon.
func (c *SettlementCoordinator) Start(ctx context.Context, id string, player common.Address) (domain.SessionView, error) {
	st, err := c.lookup(id, player)
	if err != nil {
		return domain.SessionView{}, err
	}

	st.mu.Lock()
	if st.view.Stage != domain.StagePaid || st.starting {
		stage := st.view.Stage
		st.mu.Unlock()
		return domain.SessionView{}, fmt.Errorf("start in stage %s: %w", stage, domain.ErrInvalidStage)
	}
	st.starting = true
	paymentHash := st.view.PaymentHash
	st.mu.Unlock()

	session, err := c.quiz.Start(ctx, paymentHash, player)

	st.mu.Lock()
	st.starting = false
	if err != nil {
		st.mu.Unlock()
		return domain.SessionView{}, err
	}
	view := session.View()
	st.session = session
	st.view.Stage = domain.StagePlaying
	st.view.Session = &view
	st.view.Error = ""
	c.touchLocked(st)
	st.mu.Unlock()

	c.logFor(st).WithFields(logrus.Fields{"payment_hash": view.PaymentHash.Hex(), "deadline": view.Deadline}).Info("quiz started")

	c.wg.Add(1)
	go c.watchSession(st, session)
	return view, nil
}

// SubmitAnswer forwards an answer to the settlement's session.
func (c *SettlementCoordinator) SubmitAnswer(ctx context.Context, id string, player common.Address, selected int) (domain.AnswerOutcome, error) {
	st, err := c.lookup(id, player)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}

	st.mu.Lock()
	session := st.session
	stage := st.view.Stage
	st.mu.Unlock()
	if session == nil {
		return domain.AnswerOutcome{}, fmt.Errorf("answer in stage %s: %w", stage, domain.ErrInvalidStage)
	}

	outcome, err := session.Submit(ctx, selected)
	if outcome.State.Terminal() {
		c.finish(st, session)
	}
	return outcome, err
}

// Claim authorizes and submits the reward mint for a finished settlement.
// The settlement sits in claiming while the authorizer and the reward backend
// are called, without its lock held, so a concurrent Claim is refused.
// From claim_failed no reward exists and Claim mints again. From
// claim_unrecorded the mint has confirmed and Claim only records the claim.
func (c *SettlementCoordinator) Claim(ctx context.Context, id string, player common.Address) (domain.Settlement, error) {
	st, err := c.lookup(id, player)
	if err != nil {
		return domain.Settlement{}, err
	}

	st.mu.Lock()
	prev := st.view.Stage
	switch prev {
	case domain.StageFinished, domain.StageClaimFailed, domain.StageClaimUnrecorded:
	default:
		snap := st.snapshotLocked()
		st.mu.Unlock()
		return snap, fmt.Errorf("claim in stage %s: %w", prev, domain.ErrInvalidStage)
	}
	paymentHash := st.view.PaymentHash
	score := st.view.Session.Score
	mintRef := st.view.MintRef
	st.view.Stage = domain.StageClaiming
	st.view.Error = ""
	c.touchLocked(st)

	if prev == domain.StageClaimUnrecorded {
		waitCtx, cancel := context.WithCancel(c.ctx)
		st.cancel = cancel
		snap := st.snapshotLocked()
		st.mu.Unlock()

		c.logFor(st).WithField("mint_ref", mintRef).Info("recording claim for confirmed mint")
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.commitClaim(waitCtx, st, player, paymentHash, mintRef)
		}()
		return snap, nil
	}
	st.mu.Unlock()

	decision, err := c.authorizer.Authorize(ctx, paymentHash, player, score)
	if err != nil {
		c.logFor(st).WithError(err).Warn("reward not authorized")
		return c.update(st, func(v *domain.Settlement) {
			v.Stage = prev
			v.Error = err.Error()
		}), err
	}

	ref, err := c.rewards.MintReward(ctx, player, score, paymentHash)
	if err != nil {
		c.metrics.ConfirmationFailed("mint")
		c.logFor(st).WithError(err).Error("mint submission failed")
		return c.update(st, func(v *domain.Settlement) {
			v.Stage = domain.StageClaimFailed
			v.Error = err.Error()
		}), fmt.Errorf("%w: %v", domain.ErrExternalConfirmationFailed, err)
	}

	waitCtx, cancel := context.WithCancel(c.ctx)
	st.mu.Lock()
	st.cancel = cancel
	st.view.Decision = &decision
	st.view.MintRef = ref
	c.touchLocked(st)
	snap := st.snapshotLocked()
	st.mu.Unlock()

	c.logFor(st).WithFields(logrus.Fields{"mint_ref": ref, "tokens": decision.TokensAwarded}).Info("mint submitted")

	c.wg.Add(1)
	go c.awaitMint(waitCtx, st, player, paymentHash, ref)
	return snap, nil
}

// Abandon gives up on a settlement that has not started playing. A pending
// payment wait is cancelled; a confirmed but unplayed payment stays unconsumed
// and can be reopened with Resume.
func (c *SettlementCoordinator) Abandon(_ context.Context, id string, player common.Address) (domain.Settlement, error) {
	st, err := c.lookup(id, player)
	if err != nil {
		return domain.Settlement{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	switch st.view.Stage {
	case domain.StageAwaitingPayment, domain.StagePaid, domain.StagePaymentFailed:
	default:
		return st.snapshotLocked(), fmt.Errorf("abandon in stage %s: %w", st.view.Stage, domain.ErrInvalidStage)
	}
	if st.starting {
		return st.snapshotLocked(), fmt.Errorf("abandon while quiz starts: %w", domain.ErrInvalidStage)
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.view.Stage = domain.StageAbandoned
	c.touchLocked(st)
	c.logFor(st).Info("settlement abandoned")
	return st.snapshotLocked(), nil
}

// Get returns the current snapshot of a settlement.
func (c *SettlementCoordinator) Get(id string) (domain.Settlement, error) {
	st, ok := c.get(id)
	if !ok {
		return domain.Settlement{}, domain.ErrSettlementNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked(), nil
}

// Subscribe returns a channel of settlement snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (c *SettlementCoordinator) Subscribe(id string) (<-chan domain.Settlement, func(), error) {
	st, ok := c.get(id)
	if !ok {
		return nil, nil, domain.ErrSettlementNotFound
	}
	ch, cancel := st.subscribe()
	return ch, cancel, nil
}

// Await blocks until the settlement is no longer waiting on an external confirmation.
func (c *SettlementCoordinator) Await(ctx context.Context, id string) (domain.Settlement, error) {
	updates, cancel, err := c.Subscribe(id)
	if err != nil {
		return domain.Settlement{}, err
	}
	defer cancel()
	for {
		select {
		case snap := <-updates:
			if !snap.Stage.Pending() {
				return snap, nil
			}
		case <-ctx.Done():
			return domain.Settlement{}, ctx.Err()
		}
	}
}

// PlayerStats aggregates payments and claims for one player.
func (c *SettlementCoordinator) PlayerStats(ctx context.Context, player common.Address) (domain.PlayerStats, error) {
	payments, err := c.ledger.PlayerPayments(ctx, player)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	claims, inWindow, err := c.authorizer.PlayerClaims(ctx, player)
	if err != nil {
		return domain.PlayerStats{}, err
	}

	stats := domain.PlayerStats{
		Player:           player,
		TotalPaid:        new(big.Int),
		QuizzesPurchased: len(payments),
		ClaimsInWindow:   inWindow,
	}
	for _, p := range payments {
		if p.Amount != nil {
			stats.TotalPaid.Add(stats.TotalPaid, p.Amount)
		}
		if p.Completed {
			stats.QuizzesCompleted++
		}
		if p.Timestamp.After(stats.LastPayment) {
			stats.LastPayment = p.Timestamp
		}
	}
	for _, claim := range claims {
		stats.TokensEarned += claim.TokensAwarded
		if claim.ClaimedAt.After(stats.LastClaim) {
			stats.LastClaim = claim.ClaimedAt
		}
	}
	stats.CanClaim = inWindow < c.authorizer.Policy().DailyCap
	if !stats.CanClaim {
		stats.CanClaimReason = domain.ErrRateLimited.Error()
	}
	return stats, nil
}

// Prune drops settlements that ended before cutoff and reports how many were removed.
func (c *SettlementCoordinator) Prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, st := range c.settlements {
		st.mu.Lock()
		done := isClosedStage(st.view.Stage) && st.view.UpdatedAt.Before(cutoff)
		st.mu.Unlock()
		if done {
			delete(c.settlements, id)
			removed++
		}
	}
	return removed
}

// Close cancels outstanding confirmation waits and waits for them to return.
func (c *SettlementCoordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *SettlementCoordinator) awaitPayment(ctx context.Context, st *settlement, player common.Address, ref string) {
	defer c.wg.Done()
	log := c.logFor(st).WithField("payment_ref", ref)

	started := c.now()
	var receipt domain.PaymentReceipt
	err := awaitConfirmation(ctx, c.poll, func(ctx context.Context) (domain.ConfirmationStatus, error) {
		r, err := c.payments.PaymentStatus(ctx, ref, player)
		if err != nil {
			return "", err
		}
		receipt = r
		return r.Status, nil
	}, func(err error, next time.Duration) {
		if !errors.Is(err, errStillPending) {
			log.WithError(err).WithField("retry_in", next).Warn("payment status check failed")
		}
	})
	c.metrics.ObserveConfirmation("payment", c.now().Sub(started))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.metrics.ConfirmationFailed("payment")
		log.WithError(err).WithField("reason", receipt.Reason).Warn("payment failed")
		c.update(st, func(v *domain.Settlement) {
			if v.Stage != domain.StageAwaitingPayment {
				return
			}
			v.Stage = domain.StagePaymentFailed
			v.Error = failureText(err, receipt.Reason)
		})
		return
	}

	// The payment is spent on chain; record it even if the settlement is abandoned meanwhile.
	rec, err := c.ledger.RecordConfirmedPayment(context.WithoutCancel(ctx), player, receipt)
	if err != nil {
		log.WithError(err).Warn("payment rejected by ledger")
		c.update(st, func(v *domain.Settlement) {
			if v.Stage != domain.StageAwaitingPayment {
				return
			}
			v.Stage = domain.StagePaymentFailed
			v.Error = err.Error()
		})
		return
	}

	log.WithField("payment_hash", rec.PaymentHash.Hex()).Info("payment recorded")
	c.update(st, func(v *domain.Settlement) {
		v.PaymentHash = rec.PaymentHash
		if v.Stage == domain.StageAwaitingPayment {
			v.Stage = domain.StagePaid
		}
	})
}

func (c *SettlementCoordinator) watchSession(st *settlement, session *Session) {
	defer c.wg.Done()
	select {
	case <-session.Done():
		c.finish(st, session)
	case <-c.ctx.Done():
	}
}

// finish reports a terminal session once and releases it from the repository.
func (c *SettlementCoordinator) finish(st *settlement, session *Session) {
	st.mu.Lock()
	if st.view.Stage != domain.StagePlaying {
		st.mu.Unlock()
		return
	}
	view := session.View()
	st.view.Session = &view
	st.view.Stage = domain.StageFinished
	if err := session.Err(); err != nil {
		st.view.Error = err.Error()
	}
	c.touchLocked(st)
	st.mu.Unlock()

	log := c.logFor(st).WithField("payment_hash", session.PaymentHash().Hex())
	log.WithFields(logrus.Fields{"state": view.State, "score": view.Score}).Info("quiz finished")
	if err := c.quiz.Release(c.ctx, session.PaymentHash()); err != nil {
		log.WithError(err).Warn("quiz session not released")
	}
}

func (c *SettlementCoordinator) awaitMint(ctx context.Context, st *settlement, player common.Address, paymentHash common.Hash, ref string) {
	defer c.wg.Done()
	log := c.logFor(st).WithFields(logrus.Fields{"mint_ref": ref, "payment_hash": paymentHash.Hex()})

	started := c.now()
	err := awaitConfirmation(ctx, c.poll, func(ctx context.Context) (domain.ConfirmationStatus, error) {
		return c.rewards.MintStatus(ctx, ref)
	}, func(err error, next time.Duration) {
		if !errors.Is(err, errStillPending) {
			log.WithError(err).WithField("retry_in", next).Warn("mint status check failed")
		}
	})
	c.metrics.ObserveConfirmation("mint", c.now().Sub(started))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.metrics.ConfirmationFailed("mint")
		log.WithError(err).Warn("mint failed")
		c.update(st, func(v *domain.Settlement) {
			v.Stage = domain.StageClaimFailed
			v.Error = err.Error()
		})
		return
	}

	c.commitClaim(ctx, st, player, paymentHash, ref)
}

// commitClaim records the claim for a confirmed mint and never mints. Writes
// are retried; if they keep failing the settlement parks in claim_unrecorded
// with the mint reference kept, and Claim retries only the write.
func (c *SettlementCoordinator) commitClaim(ctx context.Context, st *settlement, player common.Address, paymentHash common.Hash, ref string) {
	log := c.logFor(st).WithFields(logrus.Fields{"mint_ref": ref, "payment_hash": paymentHash.Hex()})
	commitCtx := context.WithoutCancel(ctx)

	err := retryCommit(ctx, c.poll, func() error {
		rec, err := c.ledger.GetPayment(commitCtx, paymentHash)
		if err != nil {
			return err
		}
		if rec.Player != player {
			return backoff.Permanent(domain.ErrPlayerMismatch)
		}
		err = c.authorizer.RecordClaim(commitCtx, paymentHash, ref)
		switch {
		case err == nil, errors.Is(err, domain.ErrAlreadyClaimed):
			return nil
		case errors.Is(err, domain.ErrPaymentNotCompleted):
			return backoff.Permanent(err)
		}
		return err
	}, func(err error, next time.Duration) {
		log.WithError(err).WithField("retry_in", next).Warn("claim write failed")
	})
	if err != nil {
		log.WithError(err).Error("claim not recorded after confirmed mint")
		c.update(st, func(v *domain.Settlement) {
			v.Stage = domain.StageClaimUnrecorded
			v.Error = err.Error()
		})
		return
	}

	log.Info("reward claimed")
	c.update(st, func(v *domain.Settlement) {
		v.Stage = domain.StageClaimed
		v.Error = ""
	})
}

func (c *SettlementCoordinator) open(player common.Address, stage domain.SettlementStage) *settlement {
	st := &settlement{
		view: domain.Settlement{
			ID:        uuid.NewString(),
			Player:    player,
			Stage:     stage,
			UpdatedAt: c.now(),
		},
		subscribers: make(map[chan domain.Settlement]struct{}),
	}
	c.mu.Lock()
	c.settlements[st.view.ID] = st
	c.mu.Unlock()

	c.metrics.SettlementStarted()
	c.logFor(st).WithField("stage", stage).Info("settlement opened")
	return st
}

func (c *SettlementCoordinator) get(id string) (*settlement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.settlements[id]
	return st, ok
}

// lookup returns the settlement only to the player it belongs to.
func (c *SettlementCoordinator) lookup(id string, player common.Address) (*settlement, error) {
	st, ok := c.get(id)
	if !ok {
		return nil, domain.ErrSettlementNotFound
	}
	if st.view.Player != player {
		return nil, domain.ErrPlayerMismatch
	}
	return st, nil
}

func (c *SettlementCoordinator) update(st *settlement, fn func(*domain.Settlement)) domain.Settlement {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.view)
	c.touchLocked(st)
	return st.snapshotLocked()
}

func (c *SettlementCoordinator) touchLocked(st *settlement) {
	st.view.UpdatedAt = c.now()
	st.broadcastLocked()
}

// logFor only reads fields fixed at open, so it is safe without st.mu.
func (c *SettlementCoordinator) logFor(st *settlement) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"settlement": st.view.ID,
		"player":     st.view.Player.Hex(),
	})
}

func isClosedStage(stage domain.SettlementStage) bool {
	switch stage {
	case domain.StageClaimed, domain.StagePaymentFailed, domain.StageAbandoned:
		return true
	}
	return false
}

func failureText(err error, reason string) string {
	if reason == "" {
		return err.Error()
	}
	return err.Error() + ": " + reason
}

// settlement is the coordinator-owned state of one play-through.
type settlement struct {
	mu          sync.Mutex
	view        domain.Settlement
	session     *Session
	starting    bool
	cancel      context.CancelFunc
	subscribers map[chan domain.Settlement]struct{}
}

func (s *settlement) subscribe() (<-chan domain.Settlement, func()) {
	ch := make(chan domain.Settlement, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *settlement) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot so a slow reader never blocks the flow.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *settlement) snapshotLocked() domain.Settlement {
	snap := s.view
	if s.view.Session != nil {
		session := *s.view.Session
		snap.Session = &session
	}
	if s.view.Decision != nil {
		decision := *s.view.Decision
		snap.Decision = &decision
	}
	return snap
}
