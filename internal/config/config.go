package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"celo-quiz-settlement/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		ID       string `yaml:"id"`
		Duration string `yaml:"duration"`
		TTL      string `yaml:"ttl"`
	} `yaml:"quiz"`
	Settlement struct {
		FeeWei           string `yaml:"fee_wei"`
		RewardMultiplier int    `yaml:"reward_multiplier"`
		DailyClaimCap    int    `yaml:"daily_claim_cap"`
		ClaimWindow      string `yaml:"claim_window"`
		PollInitial      string `yaml:"poll_initial"`
		PollMax          string `yaml:"poll_max"`
		Retention        string `yaml:"retention"`
	} `yaml:"settlement"`
	Chain struct {
		RPCURL          string `yaml:"rpc_url"`
		ChainID         int64  `yaml:"chain_id"`
		PaymentContract string `yaml:"payment_contract"`
		TokenContract   string `yaml:"token_contract"`
		MinterKey       string `yaml:"minter_key"`
		Confirmations   uint64 `yaml:"confirmations"`
	} `yaml:"chain"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path. MINTER_KEY and LOG_LEVEL in the
// environment override the file so secrets can stay out of it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if key := os.Getenv("MINTER_KEY"); key != "" {
		cfg.Chain.MinterKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// QuizID returns the configured bank id or "soccer".
func (c Config) QuizID() string {
	if c.Quiz.ID == "" {
		return "soccer"
	}
	return c.Quiz.ID
}

// FeeWei parses the quiz fee, defaulting to 0.1 CELO.
func (c Config) FeeWei() (*big.Int, error) {
	if c.Settlement.FeeWei == "" {
		return domain.DefaultQuizFee(), nil
	}
	fee, ok := new(big.Int).SetString(c.Settlement.FeeWei, 10)
	if !ok || fee.Sign() <= 0 {
		return nil, fmt.Errorf("settlement.fee_wei: invalid amount %q", c.Settlement.FeeWei)
	}
	return fee, nil
}

// ChainEnabled reports whether payments and mints go on chain rather than through the dev backend.
func (c Config) ChainEnabled() bool {
	return c.Chain.RPCURL != ""
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
