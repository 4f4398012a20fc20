package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
// Create must refuse a second session for a payment hash until Delete is called.
// Delete always drops the local session; an error means the shared marker may
// linger until it expires.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(paymentHash common.Hash) (*Session, bool)
	Delete(ctx context.Context, paymentHash common.Hash) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Completer is the ledger gate a session reports its final score to.
type Completer interface {
	MarkCompleted(ctx context.Context, paymentHash common.Hash, score int) error
}

// QuizConfig tunes the quiz a service hands out.
type QuizConfig struct {
	QuizID   string
	Duration time.Duration
	// Now overrides the wall clock; tests use it to move past deadlines.
	Now func() time.Time
}

// QuizService starts payment-bound quiz sessions and routes answers to them.
type QuizService struct {
	ledger   *PaymentLedger
	sessions SessionRepository
	quizzes  QuizRepository
	quizID   string
	duration time.Duration
	now      func() time.Time
	metrics  *metrics.Settlement
}

func NewQuizService(ledger *PaymentLedger, sessions SessionRepository, quizzes QuizRepository, cfg QuizConfig, m *metrics.Settlement) *QuizService {
	if cfg.Duration <= 0 {
		cfg.Duration = domain.DefaultQuizDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &QuizService{
		ledger:   ledger,
		sessions: sessions,
		quizzes:  quizzes,
		quizID:   cfg.QuizID,
		duration: cfg.Duration,
		now:      cfg.Now,
		metrics:  m,
	}
}

// Duration is the answer budget of every session.
func (s *QuizService) Duration() time.Duration {
	return s.duration
}

// Quiz returns the question bank sessions are played against.
func (s *QuizService) Quiz(ctx context.Context) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, s.quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", s.quizID, err)
	}
	return quiz, nil
}

// Start opens a session bound to an unconsumed payment owned by player.
func (s *QuizService) Start(ctx context.Context, paymentHash common.Hash, player common.Address) (*Session, error) {
	rec, err := s.ledger.GetPayment(ctx, paymentHash)
	if err != nil {
		return nil, err
	}
	if rec.Completed {
		return nil, domain.ErrPaymentAlreadyConsumed
	}
	if rec.Player != player {
		return nil, domain.ErrPlayerMismatch
	}

	quiz, err := s.Quiz(ctx)
	if err != nil {
		return nil, err
	}

	session := newSessionWithClock(rec.PaymentHash, player, quiz.Questions, s.duration, s.now, s.ledger, s.metrics)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	// A session that finished between the ledger read and Create has already consumed the payment.
	rec, err = s.ledger.GetPayment(ctx, paymentHash)
	if err != nil || rec.Completed {
		if err == nil {
			err = domain.ErrPaymentAlreadyConsumed
		}
		if derr := s.sessions.Delete(ctx, paymentHash); derr != nil {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}

	session.armTimer()
	return session, nil
}

// SubmitAnswer records the player's next answer on the session bound to paymentHash.
func (s *QuizService) SubmitAnswer(ctx context.Context, paymentHash common.Hash, player common.Address, selected int) (domain.AnswerOutcome, error) {
	session, ok := s.sessions.Get(paymentHash)
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrSessionNotFound
	}
	if session.Player() != player {
		return domain.AnswerOutcome{}, domain.ErrPlayerMismatch
	}
	return session.Submit(ctx, selected)
}

// Session returns the live session for a payment hash.
func (s *QuizService) Session(paymentHash common.Hash) (*Session, bool) {
	return s.sessions.Get(paymentHash)
}

// Release discards a session once its terminal state has been reported.
func (s *QuizService) Release(ctx context.Context, paymentHash common.Hash) error {
	return s.sessions.Delete(ctx, paymentHash)
}

// Session is the state machine of one player's run through a quiz.
// Answer submission and deadline expiry are serialized on mu, so a timeout
// and an in-flight answer never both succeed.
type Session struct {
	paymentHash common.Hash
	player      common.Address
	questions   []domain.Question
	startedAt   time.Time
	deadline    time.Time
	now         func() time.Time
	completer   Completer
	metrics     *metrics.Settlement

	mu          sync.Mutex
	state       domain.SessionState
	answers     []int
	finalizeErr error
	timer       *time.Timer
	done        chan struct{}
}

// NewSessionWithClock is exported for infrastructure tests that need a session to store.
func NewSessionWithClock(paymentHash common.Hash, player common.Address, questions []domain.Question, duration time.Duration, now func() time.Time, completer Completer) *Session {
	return newSessionWithClock(paymentHash, player, questions, duration, now, completer, nil)
}

func newSessionWithClock(paymentHash common.Hash, player common.Address, questions []domain.Question, duration time.Duration, now func() time.Time, completer Completer, m *metrics.Settlement) *Session {
	started := now()
	return &Session{
		paymentHash: paymentHash,
		player:      player,
		questions:   questions,
		startedAt:   started,
		deadline:    started.Add(duration),
		now:         now,
		completer:   completer,
		metrics:     m,
		state:       domain.SessionActive,
		answers:     make([]int, 0, len(questions)),
		done:        make(chan struct{}),
	}
}

func (s *Session) PaymentHash() common.Hash { return s.paymentHash }

func (s *Session) Player() common.Address { return s.player }

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err reports the ledger error from finalization, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeErr
}

func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Submit records the next answer. The tenth answer completes the session; an
// answer at or past the deadline times it out and fails with domain.ErrDeadlineExceeded.
func (s *Session) Submit(ctx context.Context, selected int) (domain.AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionActive {
		return domain.AnswerOutcome{}, domain.ErrSessionNotActive
	}
	index := len(s.answers)
	if !s.now().Before(s.deadline) {
		s.finalizeLocked(ctx, domain.SessionTimedOut)
		return domain.AnswerOutcome{
			QuestionIndex: index,
			Selected:      selected,
			Score:         Score(s.questions, s.answers),
			Answered:      index,
			State:         s.state,
		}, domain.ErrDeadlineExceeded
	}

	question := s.questions[index]
	if selected < 0 || selected >= len(question.Options) {
		return domain.AnswerOutcome{}, domain.ErrInvalidOption
	}

	s.answers = append(s.answers, selected)
	if len(s.answers) == len(s.questions) {
		s.finalizeLocked(ctx, domain.SessionCompleted)
	}

	outcome := domain.AnswerOutcome{
		QuestionIndex: index,
		Selected:      selected,
		Correct:       selected == question.CorrectIndex,
		CorrectIndex:  question.CorrectIndex,
		Explanation:   question.Explanation,
		Score:         Score(s.questions, s.answers),
		Answered:      len(s.answers),
		State:         s.state,
	}
	if s.state.Terminal() && s.finalizeErr != nil {
		return outcome, s.finalizeErr
	}
	return outcome, nil
}

// Expire times the session out if its deadline has passed. It reports whether
// this call moved the session to a terminal state.
func (s *Session) Expire(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionActive || s.now().Before(s.deadline) {
		return false
	}
	s.finalizeLocked(ctx, domain.SessionTimedOut)
	return true
}

func (s *Session) armTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionActive {
		return
	}
	s.timer = time.AfterFunc(s.deadline.Sub(s.now()), func() {
		s.Expire(context.Background())
	})
}

func (s *Session) finalizeLocked(ctx context.Context, state domain.SessionState) {
	s.state = state
	if s.timer != nil {
		s.timer.Stop()
	}
	score := Score(s.questions, s.answers)
	// The ledger write must land even if the caller went away mid-answer.
	if err := s.completer.MarkCompleted(context.WithoutCancel(ctx), s.paymentHash, score); err != nil {
		s.finalizeErr = fmt.Errorf("finalize session %s: %w", s.paymentHash.Hex(), err)
	}
	s.metrics.SessionFinalized(string(state))
	close(s.done)
}

func (s *Session) viewLocked() domain.SessionView {
	return domain.SessionView{
		PaymentHash:   s.paymentHash,
		Player:        s.player,
		State:         s.state,
		Answered:      len(s.answers),
		QuestionCount: len(s.questions),
		Score:         Score(s.questions, s.answers),
		StartedAt:     s.startedAt,
		Deadline:      s.deadline,
	}
}
