package redis

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// insertPayment fails with -1 on a known hash and -2 on a reused reference.
var insertPayment = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return -1
end
if ARGV[4] ~= '' and redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then
  return -2
end
redis.call('HSET', KEYS[1], 'player', ARGV[2], 'amount', ARGV[3], 'ref', ARGV[4], 'ts', ARGV[5], 'completed', '0', 'score', '0')
redis.call('ZADD', KEYS[3], ARGV[6], ARGV[1])
return 1
`)

// completePayment is the one-way completion gate: -1 unknown, 0 already completed, 1 completed now.
var completePayment = redis.NewScript(`
local completed = redis.call('HGET', KEYS[1], 'completed')
if not completed then
  return -1
end
if completed == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'completed', '1', 'score', ARGV[1], 'completed_at', ARGV[2])
return 1
`)

// PaymentStore keeps the payment ledger in Redis hashes so that every
// instance sees the same completion state.
//
//	HSET quiz:payment:{hash} player amount ref ts completed score completed_at
//	SETNX quiz:payment-ref:{ref} {hash}
//	ZADD quiz:player:{address}:payments {ms} {hash}
type PaymentStore struct {
	client *redis.Client
}

func NewPaymentStore(client *redis.Client) *PaymentStore {
	return &PaymentStore{client: client}
}

func (s *PaymentStore) Insert(ctx context.Context, rec domain.PaymentRecord) error {
	amount := "0"
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	res, err := insertPayment.Run(ctx, s.client,
		[]string{paymentKey(rec.PaymentHash), paymentRefKey(rec.Reference), playerPaymentsKey(rec.Player)},
		rec.PaymentHash.Hex(), rec.Player.Hex(), amount, rec.Reference, formatTime(rec.Timestamp), indexScore(rec.Timestamp),
	).Int()
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrDuplicatePayment
	case -2:
		return domain.ErrPaymentReferenceUsed
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, paymentHash common.Hash) (domain.PaymentRecord, error) {
	fields, err := s.client.HGetAll(ctx, paymentKey(paymentHash)).Result()
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("get payment: %w", err)
	}
	if len(fields) == 0 {
		return domain.PaymentRecord{}, domain.ErrPaymentNotFound
	}
	return decodePayment(paymentHash, fields)
}

func (s *PaymentStore) MarkCompleted(ctx context.Context, paymentHash common.Hash, score int, at time.Time) error {
	res, err := completePayment.Run(ctx, s.client, []string{paymentKey(paymentHash)}, score, formatTime(at)).Int()
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrPaymentNotFound
	case 0:
		return domain.ErrAlreadyCompleted
	}
	return nil
}

func (s *PaymentStore) ListByPlayer(ctx context.Context, player common.Address) ([]domain.PaymentRecord, error) {
	members, err := s.client.ZRange(ctx, playerPaymentsKey(player), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, paymentKey(common.HexToHash(member)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	out := make([]domain.PaymentRecord, 0, len(members))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodePayment(common.HexToHash(members[i]), fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodePayment(hash common.Hash, fields map[string]string) (domain.PaymentRecord, error) {
	amount, ok := new(big.Int).SetString(fields["amount"], 10)
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("payment %s: bad amount %q", hash.Hex(), fields["amount"])
	}
	score, err := strconv.Atoi(fields["score"])
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("payment %s: bad score: %w", hash.Hex(), err)
	}
	return domain.PaymentRecord{
		Player:      common.HexToAddress(fields["player"]),
		Amount:      amount,
		PaymentHash: hash,
		Reference:   fields["ref"],
		Timestamp:   parseTime(fields["ts"]),
		Completed:   fields["completed"] == "1",
		Score:       score,
		CompletedAt: parseTime(fields["completed_at"]),
	}, nil
}
