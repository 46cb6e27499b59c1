package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Thresholds configures the scoring heuristics. Passed in explicitly at
// construction; no ambient settings object.
type Thresholds struct {
	MaxDailyTransactions int64
	MaxDailyAmount       decimal.Decimal
}

// Signals are the observed inputs to a fraud score. Collaborators fill
// them from store queries; Score itself never touches the store.
type Signals struct {
	RecentTransactionCount int64
	DailyApprovedAmount    decimal.Decimal
	CandidateAmount        decimal.Decimal
	DuplicateReceipt       bool
	SuspiciousTiming       bool
}

// Heuristic weights. Additive, clamped to 1.0.
const (
	weightDailyCount  = 0.3
	weightDailyAmount = 0.4
	weightDupReceipt  = 0.5
	weightRapidFire   = 0.2
)

// Score computes the [0,1] risk estimate for a prospective transaction.
// Pure function of its inputs.
func Score(t Thresholds, sig Signals) float64 {
	score := 0.0

	if sig.RecentTransactionCount > t.MaxDailyTransactions {
		score += weightDailyCount
	}
	if sig.DailyApprovedAmount.Add(sig.CandidateAmount).GreaterThan(t.MaxDailyAmount) {
		score += weightDailyAmount
	}
	if sig.DuplicateReceipt {
		score += weightDupReceipt
	}
	if sig.SuspiciousTiming {
		score += weightRapidFire
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RapidFire reports whether a burst of transaction times looks
// scripted: at least three in the window with any consecutive pair
// less than a minute apart. Times must be sorted newest first.
func RapidFire(times []time.Time) bool {
	if len(times) < 3 {
		return false
	}
	for i := 0; i < len(times)-1; i++ {
		if times[i].Sub(times[i+1]).Seconds() < 60 {
			return true
		}
	}
	return false
}
