package redis

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func TestClaimStoreClaimOnceAndWindow(t *testing.T) {
	_, client := startRedis(t)
	store := NewClaimStore(client)
	ctx := context.Background()

	player := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	base := time.Date(2025, 11, 22, 12, 0, 0, 0, time.UTC)

	if _, err := store.Get(ctx, common.HexToHash("0x01")); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("expected claim not found, got %v", err)
	}

	for i := 0; i < 3; i++ {
		claim := domain.RewardClaim{
			Player:        player,
			PaymentHash:   common.BigToHash(big.NewInt(int64(i + 1))),
			Score:         10 * (i + 1),
			TokensAwarded: int64(100 * (i + 1)),
			ClaimedAt:     base.Add(time.Duration(i) * time.Hour),
			MintRef:       "0xmint",
		}
		if err := store.MarkClaimed(ctx, claim); err != nil {
			t.Fatalf("mark claimed %d: %v", i, err)
		}
	}

	dup := domain.RewardClaim{Player: player, PaymentHash: common.BigToHash(big.NewInt(1)), ClaimedAt: base}
	if err := store.MarkClaimed(ctx, dup); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}

	got, err := store.Get(ctx, common.BigToHash(big.NewInt(2)))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Claimed || got.Score != 20 || got.TokensAwarded != 200 || got.MintRef != "0xmint" || !got.ClaimedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected claim %+v", got)
	}

	count, err := store.CountClaimedSince(ctx, player, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 claims since the window start, got %d", count)
	}

	list, err := store.ListByPlayer(ctx, player)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Score != 10 {
		t.Fatalf("unexpected list %+v", list)
	}
}
