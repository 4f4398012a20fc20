package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// QuestionCount is the fixed length of every quiz.
	QuestionCount = 10
	// OptionsPerQuestion is the number of choices shown for each question.
	OptionsPerQuestion = 4
	// PointsPerCorrect is awarded for each correct answer; there is no partial credit.
	PointsPerCorrect = 10
	// MaxScore is the best achievable score.
	MaxScore = QuestionCount * PointsPerCorrect
	// DefaultQuizDuration is the answer budget measured from session start.
	DefaultQuizDuration = 60 * time.Second
	// DefaultRewardMultiplier converts score points into reward tokens.
	DefaultRewardMultiplier = 10
	// DefaultDailyClaimCap bounds claims per player per claim window.
	DefaultDailyClaimCap = 10
	// DefaultClaimWindow is the rolling window the claim cap applies to.
	DefaultClaimWindow = 24 * time.Hour
)

// DefaultQuizFee is 0.1 of the chain's native coin, in wei.
func DefaultQuizFee() *big.Int {
	return big.NewInt(100_000_000_000_000_000)
}

// SessionState is the lifecycle state of a quiz session.
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionTimedOut  SessionState = "timed_out"
	SessionCompleted SessionState = "completed"
)

// Terminal reports whether no further answers can be recorded.
func (s SessionState) Terminal() bool {
	return s == SessionTimedOut || s == SessionCompleted
}

// ConfirmationStatus is the observed state of an external transaction.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// PaymentRecord is the ledger's authoritative view of one quiz payment.
type PaymentRecord struct {
	Player      common.Address `json:"player"`
	Amount      *big.Int       `json:"amount"`
	PaymentHash common.Hash    `json:"paymentHash"`
	Reference   string         `json:"reference,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Completed   bool           `json:"completed"`
	Score       int            `json:"score"`
	CompletedAt time.Time      `json:"completedAt,omitempty"`
}

// RewardClaim records the one-time token mint funded by a payment.
type RewardClaim struct {
	Player        common.Address `json:"player"`
	PaymentHash   common.Hash    `json:"paymentHash"`
	Score         int            `json:"score"`
	TokensAwarded int64          `json:"tokensAwarded"`
	Claimed       bool           `json:"claimed"`
	ClaimedAt     time.Time      `json:"claimedAt"`
	MintRef       string         `json:"mintRef,omitempty"`
}

// AuthorizationDecision is the authorizer's verdict for a mint request.
type AuthorizationDecision struct {
	Approved      bool           `json:"approved"`
	Player        common.Address `json:"player"`
	PaymentHash   common.Hash    `json:"paymentHash"`
	Score         int            `json:"score"`
	TokensAwarded int64          `json:"tokensAwarded"`
	DecidedAt     time.Time      `json:"decidedAt"`
}

// Question is a single multiple-choice question with one correct option.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Quiz is an ordered question bank.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Validate checks the bank has the fixed shape every session relies on.
func (q Quiz) Validate() error {
	if len(q.Questions) != QuestionCount {
		return ErrInvalidQuestionBank
	}
	for _, question := range q.Questions {
		if len(question.Options) != OptionsPerQuestion {
			return ErrInvalidQuestionBank
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return ErrInvalidQuestionBank
		}
	}
	return nil
}

// AnswerOutcome summarizes one recorded answer for the UI.
type AnswerOutcome struct {
	QuestionIndex int          `json:"questionIndex"`
	Selected      int          `json:"selected"`
	Correct       bool         `json:"correct"`
	CorrectIndex  int          `json:"correctIndex"`
	Explanation   string       `json:"explanation"`
	Score         int          `json:"score"`
	Answered      int          `json:"answered"`
	State         SessionState `json:"state"`
}

// SessionView is a read-only snapshot of a quiz session.
type SessionView struct {
	PaymentHash   common.Hash    `json:"paymentHash"`
	Player        common.Address `json:"player"`
	State         SessionState   `json:"state"`
	Answered      int            `json:"answered"`
	QuestionCount int            `json:"questionCount"`
	Score         int            `json:"score"`
	StartedAt     time.Time      `json:"startedAt"`
	Deadline      time.Time      `json:"deadline"`
}

// PaymentReceipt is what a payment backend reports about an external payment.
// PaymentHash is the hash the payment contract issued, zero when the backend has none.
type PaymentReceipt struct {
	Status      ConfirmationStatus `json:"status"`
	Amount      *big.Int           `json:"amount,omitempty"`
	Reference   string             `json:"reference"`
	PaymentHash common.Hash        `json:"paymentHash,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}

// PlayerStats aggregates a player's payment and reward history.
type PlayerStats struct {
	Player           common.Address `json:"player"`
	TotalPaid        *big.Int       `json:"totalPaid"`
	QuizzesPurchased int            `json:"quizzesPurchased"`
	QuizzesCompleted int            `json:"quizzesCompleted"`
	LastPayment      time.Time      `json:"lastPayment,omitempty"`
	TokensEarned     int64          `json:"tokensEarned"`
	ClaimsInWindow   int            `json:"claimsInWindow"`
	LastClaim        time.Time      `json:"lastClaim,omitempty"`
	CanClaim         bool           `json:"canClaim"`
	CanClaimReason   string         `json:"canClaimReason,omitempty"`
}
