package redis

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func paymentKey(hash common.Hash) string {
	return "quiz:payment:" + hash.Hex()
}

func paymentRefKey(ref string) string {
	return "quiz:payment-ref:" + ref
}

func playerPaymentsKey(player common.Address) string {
	return "quiz:player:" + player.Hex() + ":payments"
}

func claimKey(hash common.Hash) string {
	return "quiz:claim:" + hash.Hex()
}

func playerClaimsKey(player common.Address) string {
	return "quiz:player:" + player.Hex() + ":claims"
}

func sessionKey(hash common.Hash) string {
	return "quiz:session:" + hash.Hex()
}

func bankKey(quizID string) string {
	return "quiz:" + quizID + ":bank"
}

// Sorted-set scores are float64, so index members by milliseconds.
func indexScore(t time.Time) int64 {
	return t.UnixMilli()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
