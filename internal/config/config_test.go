package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
)

func TestLoadAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
quiz:
  duration: 45s
settlement:
  fee_wei: "200000000000000000"
  daily_claim_cap: 5
chain:
  rpc_url: https://alfajores-forno.celo-testnet.org
  chain_id: 44787
  minter_key: from-file
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MINTER_KEY", "from-env")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Settlement.DailyClaimCap != 5 || cfg.Chain.ChainID != 44787 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Chain.MinterKey != "from-env" {
		t.Fatalf("expected env minter key, got %q", cfg.Chain.MinterKey)
	}
	if !cfg.ChainEnabled() {
		t.Fatalf("expected chain enabled")
	}
	if cfg.QuizID() != "soccer" {
		t.Fatalf("expected default quiz id, got %q", cfg.QuizID())
	}
	if d := TTLDuration(cfg.Quiz.Duration, domain.DefaultQuizDuration); d != 45*time.Second {
		t.Fatalf("expected 45s, got %s", d)
	}
	fee, err := cfg.FeeWei()
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee.String() != "200000000000000000" {
		t.Fatalf("unexpected fee %s", fee)
	}
}

func TestFeeWeiDefaultsAndValidates(t *testing.T) {
	var cfg Config
	fee, err := cfg.FeeWei()
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee.Cmp(domain.DefaultQuizFee()) != 0 {
		t.Fatalf("expected default fee, got %s", fee)
	}

	cfg.Settlement.FeeWei = "-1"
	if _, err := cfg.FeeWei(); err == nil {
		t.Fatalf("expected negative fee rejected")
	}
	cfg.Settlement.FeeWei = "0.1"
	if _, err := cfg.FeeWei(); err == nil {
		t.Fatalf("expected decimal fee rejected")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %s", d)
	}
	if d := TTLDuration("nonsense", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", d)
	}
}
