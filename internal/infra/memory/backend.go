package memory

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// DevBackend stands in for the payment and token contracts when no chain is
// configured. Every payment reference confirms at the configured fee under a
// payment hash derived from the reference, and every mint confirms immediately.
// Refs prefixed "fail:" are reported as failed.
type DevBackend struct {
	fee *big.Int

	mu    sync.Mutex
	mints map[string]devMint
}

type devMint struct {
	player      common.Address
	score       int
	paymentHash common.Hash
}

func NewDevBackend(fee *big.Int) *DevBackend {
	if fee == nil {
		fee = domain.DefaultQuizFee()
	}
	return &DevBackend{fee: new(big.Int).Set(fee), mints: make(map[string]devMint)}
}

func (b *DevBackend) PaymentStatus(_ context.Context, ref string, player common.Address) (domain.PaymentReceipt, error) {
	if strings.HasPrefix(ref, "fail:") {
		return domain.PaymentReceipt{Status: domain.ConfirmationFailed, Reference: ref, Reason: "rejected by dev backend"}, nil
	}
	return domain.PaymentReceipt{
		Status:      domain.ConfirmationConfirmed,
		Amount:      new(big.Int).Set(b.fee),
		Reference:   ref,
		PaymentHash: crypto.Keccak256Hash(player.Bytes(), []byte(ref)),
	}, nil
}

func (b *DevBackend) MintReward(_ context.Context, player common.Address, score int, paymentHash common.Hash) (string, error) {
	ref := "dev-mint-" + uuid.NewString()
	b.mu.Lock()
	b.mints[ref] = devMint{player: player, score: score, paymentHash: paymentHash}
	b.mu.Unlock()
	return ref, nil
}

func (b *DevBackend) MintStatus(_ context.Context, ref string) (domain.ConfirmationStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.mints[ref]; !ok {
		return domain.ConfirmationFailed, nil
	}
	return domain.ConfirmationConfirmed, nil
}

// MintsFor reports how many mints were submitted for paymentHash.
func (b *DevBackend) MintsFor(paymentHash common.Hash) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.mints {
		if m.paymentHash == paymentHash {
			n++
		}
	}
	return n
}

// Mints reports how many mints were submitted.
func (b *DevBackend) Mints() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mints)
}
