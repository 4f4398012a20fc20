package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SettlementStage tracks one play-through from payment to reward.
// claim_failed means no reward was minted; claim_unrecorded means the mint
// confirmed but the claim is not yet written.
type SettlementStage string

const (
	StageAwaitingPayment SettlementStage = "awaiting_payment"
	StagePaymentFailed   SettlementStage = "payment_failed"
	StagePaid            SettlementStage = "paid"
	StagePlaying         SettlementStage = "playing"
	StageFinished        SettlementStage = "finished"
	StageClaiming        SettlementStage = "claiming"
	StageClaimFailed     SettlementStage = "claim_failed"
	StageClaimUnrecorded SettlementStage = "claim_unrecorded"
	StageClaimed         SettlementStage = "claimed"
	StageAbandoned       SettlementStage = "abandoned"
)

// Pending reports whether the stage waits on an external confirmation.
func (s SettlementStage) Pending() bool {
	return s == StageAwaitingPayment || s == StageClaiming
}

// Settlement is the coordinator's snapshot of a play-through, as sent to the UI.
type Settlement struct {
	ID          string                 `json:"id"`
	Player      common.Address         `json:"player"`
	Stage       SettlementStage        `json:"stage"`
	PaymentRef  string                 `json:"paymentRef,omitempty"`
	PaymentHash common.Hash            `json:"paymentHash,omitempty"`
	Session     *SessionView           `json:"session,omitempty"`
	Decision    *AuthorizationDecision `json:"decision,omitempty"`
	MintRef     string                 `json:"mintRef,omitempty"`
	Error       string                 `json:"error,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}
