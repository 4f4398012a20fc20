package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
)

type claimRow struct {
	bun.BaseModel `bun:"table:reward_claims"`

	PaymentHash   string    `bun:"payment_hash,pk"`
	Player        string    `bun:"player,notnull"`
	Score         int       `bun:"score,notnull"`
	TokensAwarded int64     `bun:"tokens_awarded,notnull"`
	ClaimedAt     time.Time `bun:"claimed_at,notnull"`
	MintRef       string    `bun:"mint_ref,notnull"`
}

// ClaimStore records reward claims in Postgres; the primary key on
// payment_hash makes a claim insert-once.
type ClaimStore struct {
	db *bun.DB
}

func NewClaimStore(db *bun.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

func (s *ClaimStore) Get(ctx context.Context, paymentHash common.Hash) (domain.RewardClaim, error) {
	row := new(claimRow)
	err := s.db.NewSelect().Model(row).Where("payment_hash = ?", paymentHash.Hex()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RewardClaim{}, domain.ErrClaimNotFound
	}
	if err != nil {
		return domain.RewardClaim{}, fmt.Errorf("get claim: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ClaimStore) MarkClaimed(ctx context.Context, claim domain.RewardClaim) error {
	row := &claimRow{
		PaymentHash:   claim.PaymentHash.Hex(),
		Player:        claim.Player.Hex(),
		Score:         claim.Score,
		TokensAwarded: claim.TokensAwarded,
		ClaimedAt:     claim.ClaimedAt,
		MintRef:       claim.MintRef,
	}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (payment_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

func (s *ClaimStore) CountClaimedSince(ctx context.Context, player common.Address, since time.Time) (int, error) {
	n, err := s.db.NewSelect().
		Model((*claimRow)(nil)).
		Where("player = ?", player.Hex()).
		Where("claimed_at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

func (s *ClaimStore) ListByPlayer(ctx context.Context, player common.Address) ([]domain.RewardClaim, error) {
	var rows []claimRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("player = ?", player.Hex()).
		Order("claimed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	out := make([]domain.RewardClaim, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *claimRow) toDomain() domain.RewardClaim {
	return domain.RewardClaim{
		Player:        common.HexToAddress(r.Player),
		PaymentHash:   common.HexToHash(r.PaymentHash),
		Score:         r.Score,
		TokensAwarded: r.TokensAwarded,
		Claimed:       true,
		ClaimedAt:     r.ClaimedAt,
		MintRef:       r.MintRef,
	}
}
