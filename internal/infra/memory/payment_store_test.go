package memory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func TestPaymentStoreMarkCompletedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewPaymentStore()
	rec := domain.PaymentRecord{
		Player:      common.HexToAddress("0xabc"),
		Amount:      domain.DefaultQuizFee(),
		PaymentHash: common.HexToHash("0x01"),
		Timestamp:   time.Unix(100, 0),
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, rec); !errors.Is(err, domain.ErrDuplicatePayment) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			if err := store.MarkCompleted(ctx, rec.PaymentHash, score, time.Unix(200, 0)); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, domain.ErrAlreadyCompleted) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i * 10 % 110)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one completion, got %d", wins.Load())
	}

	if err := store.MarkCompleted(ctx, common.HexToHash("0x02"), 10, time.Now()); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPaymentStoreReferenceUsedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewPaymentStore()
	player := common.HexToAddress("0xabc")

	first := domain.PaymentRecord{Player: player, Amount: big.NewInt(1), PaymentHash: common.HexToHash("0x01"), Reference: "0xtx", Timestamp: time.Unix(1, 0)}
	second := domain.PaymentRecord{Player: player, Amount: big.NewInt(1), PaymentHash: common.HexToHash("0x02"), Reference: "0xtx", Timestamp: time.Unix(2, 0)}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, second); !errors.Is(err, domain.ErrPaymentReferenceUsed) {
		t.Fatalf("expected reference reuse rejected, got %v", err)
	}

	list, err := store.ListByPlayer(ctx, player)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].PaymentHash != first.PaymentHash {
		t.Fatalf("expected only first payment listed, got %+v", list)
	}
}
