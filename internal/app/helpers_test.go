package app_test

import (
	"fmt"
	"sync"
	"time"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/infra/memory"
	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 22, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testQuiz has the correct answer of question i at index i%4.
func testQuiz() domain.Quiz {
	questions := make([]domain.Question, domain.QuestionCount)
	for i := range questions {
		questions[i] = domain.Question{
			Text:         fmt.Sprintf("Question %d", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % domain.OptionsPerQuestion,
			Explanation:  fmt.Sprintf("because %d", i),
		}
	}
	return domain.Quiz{ID: "soccer", Questions: questions}
}

func wrongAnswer(i int) int {
	return (i + 1) % domain.OptionsPerQuestion
}

type fixture struct {
	clock      *fakeClock
	payments   *memory.PaymentStore
	claims     *memory.ClaimStore
	sessions   *memory.SessionStore
	quizzes    app.QuizRepository
	ledger     *app.PaymentLedger
	quiz       *app.QuizService
	authorizer *app.RewardAuthorizer
}

func newFixture() *fixture {
	clock := newFakeClock()
	payments := memory.NewPaymentStore()
	f := &fixture{
		clock:    clock,
		payments: payments,
		claims:   memory.NewClaimStore(),
		sessions: memory.NewSessionStore(),
		quizzes: memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"soccer": testQuiz(),
		}), 5*time.Minute),
		ledger: app.NewPaymentLedgerWithClock(payments, domain.DefaultQuizFee(), nil, clock.Now),
	}
	f.quiz = f.quizService(f.sessions)
	f.authorizer = f.rewardAuthorizer(f.claims)
	return f
}

func (f *fixture) quizService(sessions app.SessionRepository) *app.QuizService {
	return app.NewQuizService(f.ledger, sessions, f.quizzes, app.QuizConfig{
		QuizID:   "soccer",
		Duration: domain.DefaultQuizDuration,
		Now:      f.clock.Now,
	}, nil)
}

func (f *fixture) rewardAuthorizer(claims app.ClaimStore) *app.RewardAuthorizer {
	return app.NewRewardAuthorizerWithClock(f.payments, claims, app.RewardPolicy{
		Multiplier: domain.DefaultRewardMultiplier,
		DailyCap:   3,
		Window:     domain.DefaultClaimWindow,
	}, nil, f.clock.Now)
}
