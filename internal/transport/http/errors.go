package http

import (
	"errors"
	"net/http"

	"celo-quiz-settlement/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrInvalidAmount, "invalid_amount", http.StatusUnprocessableEntity},
	{domain.ErrPaymentNotFound, "payment_not_found", http.StatusNotFound},
	{domain.ErrPaymentAlreadyConsumed, "payment_already_consumed", http.StatusConflict},
	{domain.ErrPaymentNotCompleted, "payment_not_completed", http.StatusConflict},
	{domain.ErrSessionNotActive, "session_not_active", http.StatusConflict},
	{domain.ErrDeadlineExceeded, "deadline_exceeded", http.StatusConflict},
	{domain.ErrAlreadyCompleted, "already_completed", http.StatusConflict},
	{domain.ErrAlreadyClaimed, "already_claimed", http.StatusConflict},
	{domain.ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
	{domain.ErrExternalConfirmationFailed, "external_confirmation_failed", http.StatusBadGateway},
	{domain.ErrSessionNotFound, "session_not_found", http.StatusNotFound},
	{domain.ErrSessionAlreadyActive, "session_already_active", http.StatusConflict},
	{domain.ErrPlayerMismatch, "player_mismatch", http.StatusForbidden},
	{domain.ErrScoreMismatch, "score_mismatch", http.StatusConflict},
	{domain.ErrInvalidOption, "invalid_option", http.StatusBadRequest},
	{domain.ErrQuizNotFound, "quiz_not_found", http.StatusNotFound},
	{domain.ErrInvalidQuestionBank, "invalid_question_bank", http.StatusInternalServerError},
	{domain.ErrSettlementNotFound, "settlement_not_found", http.StatusNotFound},
	{domain.ErrInvalidStage, "invalid_stage", http.StatusConflict},
	{domain.ErrPaymentReferenceUsed, "payment_reference_used", http.StatusConflict},
	{domain.ErrClaimNotFound, "claim_not_found", http.StatusNotFound},
}

// classify maps an error onto a wire code and HTTP status.
func classify(err error) (string, int) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code, e.status
		}
	}
	return "internal", http.StatusInternalServerError
}

func toErrorPayload(err error) errorPayload {
	code, _ := classify(err)
	return errorPayload{Code: code, Message: err.Error()}
}
