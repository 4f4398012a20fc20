package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAPIConfig(t *testing.T) {
	ts := newTestServer(t)

	var cfg PublicConfig
	if status := getJSON(t, ts.server.URL+"/v1/config", &cfg); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if cfg.FeeWei.Cmp(domain.DefaultQuizFee()) != 0 || cfg.QuestionCount != 10 || cfg.DurationSeconds != 60 || cfg.RewardMultiplier != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestAPIPaymentAndStats(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	player := common.HexToAddress(testPlayer)

	st, err := ts.coordinator.RequestPayment(ctx, player, "0xtx1")
	if err != nil {
		t.Fatalf("request payment: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	paid, err := ts.coordinator.Await(waitCtx, st.ID)
	if err != nil || paid.Stage != domain.StagePaid {
		t.Fatalf("expected paid settlement, got %+v (%v)", paid, err)
	}

	var payment paymentView
	if status := getJSON(t, ts.server.URL+"/v1/payments/"+paid.PaymentHash.Hex(), &payment); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if payment.Player != player || payment.Completed || payment.Reference != "0xtx1" || payment.Claim != nil {
		t.Fatalf("unexpected payment %+v", payment)
	}

	var missing errorPayload
	if status := getJSON(t, ts.server.URL+"/v1/payments/0x1234", &missing); status != http.StatusNotFound || missing.Code != "payment_not_found" {
		t.Fatalf("expected payment_not_found 404, got %d %+v", status, missing)
	}

	var stats domain.PlayerStats
	if status := getJSON(t, ts.server.URL+"/v1/players/"+testPlayer+"/stats", &stats); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if stats.QuizzesPurchased != 1 || stats.QuizzesCompleted != 0 || !stats.CanClaim {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if status := getJSON(t, ts.server.URL+"/v1/players/nobody/stats", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	var snap domain.Settlement
	if status := getJSON(t, ts.server.URL+"/v1/settlements/"+st.ID, &snap); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if snap.Stage != domain.StagePaid {
		t.Fatalf("unexpected settlement %+v", snap)
	}
	if status := getJSON(t, ts.server.URL+"/v1/settlements/missing", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
