package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

var insertClaim = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'player', ARGV[2], 'score', ARGV[3], 'tokens', ARGV[4], 'claimed_at', ARGV[5], 'mint_ref', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[7], ARGV[1])
return 1
`)

// ClaimStore records reward claims; the per-player sorted set backs the
// rolling claim window.
type ClaimStore struct {
	client *redis.Client
}

func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

func (s *ClaimStore) Get(ctx context.Context, paymentHash common.Hash) (domain.RewardClaim, error) {
	fields, err := s.client.HGetAll(ctx, claimKey(paymentHash)).Result()
	if err != nil {
		return domain.RewardClaim{}, fmt.Errorf("get claim: %w", err)
	}
	if len(fields) == 0 {
		return domain.RewardClaim{}, domain.ErrClaimNotFound
	}
	return decodeClaim(paymentHash, fields)
}

func (s *ClaimStore) MarkClaimed(ctx context.Context, claim domain.RewardClaim) error {
	res, err := insertClaim.Run(ctx, s.client,
		[]string{claimKey(claim.PaymentHash), playerClaimsKey(claim.Player)},
		claim.PaymentHash.Hex(), claim.Player.Hex(), claim.Score, claim.TokensAwarded,
		formatTime(claim.ClaimedAt), claim.MintRef, indexScore(claim.ClaimedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if res == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

func (s *ClaimStore) CountClaimedSince(ctx context.Context, player common.Address, since time.Time) (int, error) {
	n, err := s.client.ZCount(ctx, playerClaimsKey(player), strconv.FormatInt(indexScore(since), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return int(n), nil
}

func (s *ClaimStore) ListByPlayer(ctx context.Context, player common.Address) ([]domain.RewardClaim, error) {
	members, err := s.client.ZRange(ctx, playerClaimsKey(player), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	out := make([]domain.RewardClaim, 0, len(members))
	for _, member := range members {
		claim, err := s.Get(ctx, common.HexToHash(member))
		if err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, nil
}

func decodeClaim(hash common.Hash, fields map[string]string) (domain.RewardClaim, error) {
	score, err := strconv.Atoi(fields["score"])
	if err != nil {
		return domain.RewardClaim{}, fmt.Errorf("claim %s: bad score: %w", hash.Hex(), err)
	}
	tokens, err := strconv.ParseInt(fields["tokens"], 10, 64)
	if err != nil {
		return domain.RewardClaim{}, fmt.Errorf("claim %s: bad tokens: %w", hash.Hex(), err)
	}
	return domain.RewardClaim{
		Player:        common.HexToAddress(fields["player"]),
		PaymentHash:   hash,
		Score:         score,
		TokensAwarded: tokens,
		Claimed:       true,
		ClaimedAt:     parseTime(fields["claimed_at"]),
		MintRef:       fields["mint_ref"],
	}, nil
}
