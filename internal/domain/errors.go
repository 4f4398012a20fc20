package domain

import "errors"

var (
	// ErrInvalidAmount is returned when a payment does not equal the configured quiz fee.
	ErrInvalidAmount = errors.New("payment amount does not match quiz fee")
	// ErrPaymentNotFound is returned when a payment hash is unknown to the ledger.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentAlreadyConsumed is returned when a spent payment is used to start a session.
	ErrPaymentAlreadyConsumed = errors.New("payment already consumed")
	// ErrPaymentNotCompleted is returned when a reward is requested for an unfinished or foreign payment.
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrSessionNotActive is returned when an answer reaches a finished session.
	ErrSessionNotActive = errors.New("quiz session not active")
	// ErrDeadlineExceeded is returned when an answer arrives after the session deadline.
	ErrDeadlineExceeded = errors.New("quiz deadline exceeded")
	// ErrAlreadyCompleted is returned when a payment is marked completed twice.
	ErrAlreadyCompleted = errors.New("payment already completed")
	// ErrAlreadyClaimed is returned when a reward for a payment is claimed twice.
	ErrAlreadyClaimed = errors.New("reward already claimed")
	// ErrRateLimited is returned when a player reached the claim cap for the current window.
	ErrRateLimited = errors.New("daily claim limit reached")
	// ErrExternalConfirmationFailed is returned when a payment or mint transaction fails upstream.
	ErrExternalConfirmationFailed = errors.New("external confirmation failed")

	// ErrSessionNotFound is returned when no session is bound to a payment hash.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionAlreadyActive is returned when a second session is started for the same payment.
	ErrSessionAlreadyActive = errors.New("quiz session already active for payment")
	// ErrPlayerMismatch is returned when the caller is not the player bound to a payment or session.
	ErrPlayerMismatch = errors.New("player does not own payment")
	// ErrScoreMismatch is returned when a claimed score differs from the recorded one.
	ErrScoreMismatch = errors.New("score does not match recorded score")
	// ErrInvalidOption indicates a submitted option index is out of range.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrQuizNotFound indicates the question bank could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuestionBank indicates the loaded bank is not a 10 x 4 quiz.
	ErrInvalidQuestionBank = errors.New("invalid question bank")
	// ErrSettlementNotFound is returned for unknown settlement ids.
	ErrSettlementNotFound = errors.New("settlement not found")
	// ErrInvalidStage is returned when an intent does not fit the settlement's current stage.
	ErrInvalidStage = errors.New("operation not allowed in current settlement stage")
	// ErrPaymentReferenceUsed is returned when one external payment is presented twice.
	ErrPaymentReferenceUsed = errors.New("payment reference already used")
	// ErrClaimNotFound is returned when no claim exists for a payment hash.
	ErrClaimNotFound = errors.New("reward claim not found")
	// ErrDuplicatePayment is returned by stores when a payment hash already exists.
	ErrDuplicatePayment = errors.New("payment hash already recorded")
)
