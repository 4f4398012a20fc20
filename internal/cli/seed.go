package cli

import (
	"context"
	"fmt"

	"celo-quiz-settlement/internal/config"
	"celo-quiz-settlement/internal/infra/postgres"
	infraredis "celo-quiz-settlement/internal/infra/redis"
	"celo-quiz-settlement/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes the bundled question banks to Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled question banks into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log := logging.New(serviceName, cfg.Log.Level)
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()

	// running servers would keep serving the old bank until its cache entry expires
	var cache *infraredis.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = infraredis.NewQuizRepository(client, nil, 0)
	}

	store := postgres.NewQuizStore(db)
	for id, quiz := range bundledQuizzes() {
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, id); err != nil {
				log.WithError(err).WithField("quiz", id).Warn("cached bank not invalidated")
			}
		}
		log.WithField("quiz", id).Info("question bank seeded")
	}
	return nil
}
