package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// QuizStore writes question banks; reads go through QuizLoader.
type QuizStore struct {
	db *bun.DB
}

func NewQuizStore(db *bun.DB) *QuizStore {
	return &QuizStore{db: db}
}

// SaveQuiz validates and upserts a bank.
func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return fmt.Errorf("quiz %s: %w", quiz.ID, err)
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	row := &quizRow{ID: quiz.ID, Data: data, UpdatedAt: time.Now()}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
