package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type paymentRow struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentHash string       `bun:"payment_hash,pk"`
	Player      string       `bun:"player,notnull"`
	AmountWei   string       `bun:"amount_wei,notnull"`
	Reference   *string      `bun:"reference"`
	PaidAt      time.Time    `bun:"paid_at,notnull"`
	Completed   bool         `bun:"completed,notnull"`
	Score       int          `bun:"score,notnull"`
	CompletedAt bun.NullTime `bun:"completed_at"`
}

// PaymentStore keeps the payment ledger in Postgres. Completion is a
// conditional UPDATE, so only one writer ever flips a row.
type PaymentStore struct {
	db *bun.DB
}

func NewPaymentStore(db *bun.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) Insert(ctx context.Context, rec domain.PaymentRecord) error {
	row := toPaymentRow(rec)
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (payment_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentReferenceUsed
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicatePayment
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, paymentHash common.Hash) (domain.PaymentRecord, error) {
	row := new(paymentRow)
	err := s.db.NewSelect().Model(row).Where("payment_hash = ?", paymentHash.Hex()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentRecord{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("get payment: %w", err)
	}
	return row.toDomain()
}

func (s *PaymentStore) MarkCompleted(ctx context.Context, paymentHash common.Hash, score int, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*paymentRow)(nil)).
		Set("completed = true").
		Set("score = ?", score).
		Set("completed_at = ?", at).
		Where("payment_hash = ?", paymentHash.Hex()).
		Where("completed = false").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*paymentRow)(nil)).Where("payment_hash = ?", paymentHash.Hex()).Exists(ctx)
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	if !exists {
		return domain.ErrPaymentNotFound
	}
	return domain.ErrAlreadyCompleted
}

func (s *PaymentStore) ListByPlayer(ctx context.Context, player common.Address) ([]domain.PaymentRecord, error) {
	var rows []paymentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("player = ?", player.Hex()).
		Order("paid_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]domain.PaymentRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toPaymentRow(rec domain.PaymentRecord) *paymentRow {
	row := &paymentRow{
		PaymentHash: rec.PaymentHash.Hex(),
		Player:      rec.Player.Hex(),
		AmountWei:   "0",
		PaidAt:      rec.Timestamp,
		Completed:   rec.Completed,
		Score:       rec.Score,
	}
	if rec.Amount != nil {
		row.AmountWei = rec.Amount.String()
	}
	if rec.Reference != "" {
		ref := rec.Reference
		row.Reference = &ref
	}
	if !rec.CompletedAt.IsZero() {
		row.CompletedAt = bun.NullTime{Time: rec.CompletedAt}
	}
	return row
}

func (r *paymentRow) toDomain() (domain.PaymentRecord, error) {
	amount, ok := new(big.Int).SetString(r.AmountWei, 10)
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("payment %s: bad amount %q", r.PaymentHash, r.AmountWei)
	}
	rec := domain.PaymentRecord{
		Player:      common.HexToAddress(r.Player),
		Amount:      amount,
		PaymentHash: common.HexToHash(r.PaymentHash),
		Timestamp:   r.PaidAt,
		Completed:   r.Completed,
		Score:       r.Score,
		CompletedAt: r.CompletedAt.Time,
	}
	if r.Reference != nil {
		rec.Reference = *r.Reference
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
