package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func TestClaimStoreClaimOnceAndCountWindow(t *testing.T) {
	ctx := context.Background()
	store := NewClaimStore()
	player := common.HexToAddress("0xabc")
	base := time.Unix(1_700_000_000, 0)

	for i, at := range []time.Time{base.Add(-48 * time.Hour), base.Add(-time.Hour), base} {
		claim := domain.RewardClaim{
			Player:        player,
			PaymentHash:   common.BigToHash(big.NewInt(int64(i + 1))),
			Score:         50,
			TokensAwarded: 500,
			ClaimedAt:     at,
		}
		if err := store.MarkClaimed(ctx, claim); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}

	dup := domain.RewardClaim{Player: player, PaymentHash: common.BigToHash(big.NewInt(1)), ClaimedAt: base}
	if err := store.MarkClaimed(ctx, dup); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}

	count, err := store.CountClaimedSince(ctx, player, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 claims in window, got %d", count)
	}

	if _, err := store.Get(ctx, common.HexToHash("0xff")); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("expected claim not found, got %v", err)
	}
}
