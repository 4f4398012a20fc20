package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"celo-quiz-settlement/internal/app"
	"celo-quiz-settlement/internal/config"
	"celo-quiz-settlement/internal/domain"
	"celo-quiz-settlement/internal/infra/chain"
	"celo-quiz-settlement/internal/infra/memory"
	"celo-quiz-settlement/internal/infra/postgres"
	infraredis "celo-quiz-settlement/internal/infra/redis"
	"celo-quiz-settlement/internal/logging"
	"celo-quiz-settlement/internal/metrics"
	transport "celo-quiz-settlement/internal/transport/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const serviceName = "celo-quiz-settlement"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz settlement server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(serviceName, cfg.Log.Level)

	fee, err := cfg.FeeWei()
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = postgres.Open(cfg.Postgres.URL)
		defer db.Close()
	}

	quizDuration := config.TTLDuration(cfg.Quiz.Duration, domain.DefaultQuizDuration)
	stores := buildStores(cfg, redisClient, pool, db, quizDuration)
	log.WithFields(logrus.Fields{"ledger": stores.backend, "sessions": stores.sessionBackend}).Info("stores configured")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledger := app.NewPaymentLedger(stores.payments, fee, m)
	quiz := app.NewQuizService(ledger, stores.sessions, stores.quizzes, app.QuizConfig{
		QuizID:   cfg.QuizID(),
		Duration: quizDuration,
	}, m)
	if _, err := quiz.Quiz(ctx); err != nil {
		return fmt.Errorf("question bank: %w", err)
	}
	policy := app.RewardPolicy{
		Multiplier: cfg.Settlement.RewardMultiplier,
		DailyCap:   cfg.Settlement.DailyClaimCap,
		Window:     config.TTLDuration(cfg.Settlement.ClaimWindow, domain.DefaultClaimWindow),
	}
	authorizer := app.NewRewardAuthorizer(stores.payments, stores.claims, policy, m)

	paymentBackend, rewardBackend, err := buildBackends(cfg, fee, log)
	if err != nil {
		return err
	}

	coordinator := app.NewSettlementCoordinator(ledger, quiz, authorizer, paymentBackend, rewardBackend, app.CoordinatorConfig{
		Poll: app.PollConfig{
			Initial: config.TTLDuration(cfg.Settlement.PollInitial, time.Second),
			Max:     config.TTLDuration(cfg.Settlement.PollMax, 15*time.Second),
		},
	}, log.WithField("component", "coordinator"), m)
	defer coordinator.Close()

	public := transport.NewPublicConfig(fee, authorizer.Policy(), quiz.Duration())
	if cfg.ChainEnabled() {
		public.ChainID = cfg.Chain.ChainID
		public.PaymentContract = cfg.Chain.PaymentContract
		public.TokenContract = cfg.Chain.TokenContract
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", transport.NewWSHandler(coordinator, quiz, log.WithField("component", "ws")).ServeWS)
	transport.NewAPIHandler(coordinator, ledger, authorizer, public, log.WithField("component", "api")).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := config.TTLDuration(cfg.Settlement.Retention, time.Hour)
	if retention < time.Minute {
		retention = time.Minute
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting quiz settlement service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(retention / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := coordinator.Prune(time.Now().Add(-retention)); n > 0 {
					log.WithField("pruned", n).Debug("closed settlements pruned")
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type storeSet struct {
	payments       app.PaymentStore
	claims         app.ClaimStore
	sessions       app.SessionRepository
	quizzes        app.QuizRepository
	backend        string
	sessionBackend string
}

// buildStores prefers Postgres for the ledger, then Redis, then process memory.
func buildStores(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool, db *bun.DB, quizDuration time.Duration) storeSet {
	var set storeSet

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(bundledQuizzes())
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		set.quizzes = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		set.quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	switch {
	case db != nil:
		set.payments = postgres.NewPaymentStore(db)
		set.claims = postgres.NewClaimStore(db)
		set.backend = "postgres"
	case redisClient != nil:
		set.payments = infraredis.NewPaymentStore(redisClient)
		set.claims = infraredis.NewClaimStore(redisClient)
		set.backend = "redis"
	default:
		set.payments = memory.NewPaymentStore()
		set.claims = memory.NewClaimStore()
		set.backend = "memory"
	}

	if redisClient != nil {
		// the session key must outlive the quiz deadline
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		if ttl < 2*quizDuration {
			ttl = 2 * quizDuration
		}
		set.sessions = infraredis.NewSessionStore(redisClient, ttl)
		set.sessionBackend = "redis"
	} else {
		set.sessions = memory.NewSessionStore()
		set.sessionBackend = "memory"
	}
	return set
}

func buildBackends(cfg config.Config, fee *big.Int, log *logrus.Entry) (app.PaymentBackend, app.RewardBackend, error) {
	if !cfg.ChainEnabled() {
		log.Warn("no chain rpc configured; payments and mints use the dev backend")
		dev := memory.NewDevBackend(fee)
		return dev, dev, nil
	}
	if !common.IsHexAddress(cfg.Chain.PaymentContract) || !common.IsHexAddress(cfg.Chain.TokenContract) {
		return nil, nil, fmt.Errorf("chain.payment_contract and chain.token_contract must be addresses")
	}
	client, err := chain.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	verifier := chain.NewPaymentVerifier(client, common.HexToAddress(cfg.Chain.PaymentContract), cfg.Chain.Confirmations)
	minter, err := chain.NewRewardMinter(client, common.HexToAddress(cfg.Chain.TokenContract), cfg.Chain.MinterKey, big.NewInt(cfg.Chain.ChainID), cfg.Chain.Confirmations)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{"chain_id": cfg.Chain.ChainID, "minter": minter.Address().Hex()}).Info("chain backend configured")
	return verifier, minter, nil
}
