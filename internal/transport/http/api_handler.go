package http

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// PublicConfig is what a wallet front end needs before paying.
type PublicConfig struct {
	FeeWei           *big.Int `json:"feeWei"`
	RewardMultiplier int      `json:"rewardMultiplier"`
	DailyClaimCap    int      `json:"dailyClaimCap"`
	QuestionCount    int      `json:"questionCount"`
	DurationSeconds  int      `json:"durationSeconds"`
	ChainID          int64    `json:"chainId,omitempty"`
	PaymentContract  string   `json:"paymentContract,omitempty"`
	TokenContract    string   `json:"tokenContract,omitempty"`
}

// APIHandler serves read-only JSON views of payments, players and settlements.
type APIHandler struct {
	coordinator *app.SettlementCoordinator
	ledger      *app.PaymentLedger
	authorizer  *app.RewardAuthorizer
	public      PublicConfig
	log         *logrus.Entry
}

func NewAPIHandler(coordinator *app.SettlementCoordinator, ledger *app.PaymentLedger, authorizer *app.RewardAuthorizer, public PublicConfig, log *logrus.Entry) *APIHandler {
	return &APIHandler{coordinator: coordinator, ledger: ledger, authorizer: authorizer, public: public, log: log}
}

func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/config", h.getConfig)
	mux.HandleFunc("GET /v1/payments/{hash}", h.getPayment)
	mux.HandleFunc("GET /v1/players/{address}/stats", h.getPlayerStats)
	mux.HandleFunc("GET /v1/settlements/{id}", h.getSettlement)
}

type paymentView struct {
	domain.PaymentRecord
	Claim *domain.RewardClaim `json:"claim,omitempty"`
}

func (h *APIHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.public)
}

func (h *APIHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	hash := common.HexToHash(r.PathValue("hash"))
	rec, err := h.ledger.GetPayment(r.Context(), hash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view := paymentView{PaymentRecord: rec}
	claim, err := h.authorizer.Claim(r.Context(), hash)
	switch {
	case err == nil:
		view.Claim = &claim
	case !errors.Is(err, domain.ErrClaimNotFound):
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) getPlayerStats(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		h.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "invalid_address", Message: "invalid player address"})
		return
	}
	stats, err := h.coordinator.PlayerStats(r.Context(), common.HexToAddress(raw))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) getSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.coordinator.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	_, status := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("api request failed")
	}
	h.writeJSON(w, status, toErrorPayload(err))
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Debug("write response")
	}
}

// NewPublicConfig fills the static parts of PublicConfig.
func NewPublicConfig(fee *big.Int, policy app.RewardPolicy, duration time.Duration) PublicConfig {
	return PublicConfig{
		FeeWei:           fee,
		RewardMultiplier: policy.Multiplier,
		DailyClaimCap:    policy.DailyCap,
		QuestionCount:    domain.QuestionCount,
		DurationSeconds:  int(duration / time.Second),
	}
}
