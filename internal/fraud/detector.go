package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"vendbot/internal/repository"
)

// Detector gathers scoring signals from the ledger store and feeds them
// to Score.
type Detector struct {
	store      repository.Store
	thresholds Thresholds
	now        func() time.Time
}

func NewDetector(store repository.Store, thresholds Thresholds) *Detector {
	return &Detector{
		store:      store,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// WithClock overrides the detector's clock. Test hook.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// CalculateFraudScore scores a prospective transaction for a user.
func (d *Detector) CalculateFraudScore(userID uint, amount decimal.Decimal, receiptRef string) (float64, error) {
	sig, err := d.gatherSignals(userID, amount, receiptRef)
	if err != nil {
		return 0, err
	}
	return Score(d.thresholds, sig), nil
}

func (d *Detector) gatherSignals(userID uint, amount decimal.Decimal, receiptRef string) (Signals, error) {
	now := d.now().UTC()
	txs := d.store.Transactions()

	recentCount, err := txs.CountSince(userID, now.Add(-24*time.Hour))
	if err != nil {
		return Signals{}, fmt.Errorf("count recent transactions: %w", err)
	}

	dailyAmount, err := txs.SumApprovedSince(userID, now.Add(-24*time.Hour))
	if err != nil {
		return Signals{}, fmt.Errorf("sum daily amount: %w", err)
	}

	duplicate, err := txs.ReceiptRefInUse(receiptRef)
	if err != nil {
		return Signals{}, fmt.Errorf("check duplicate receipt: %w", err)
	}

	times, err := txs.RecentCreatedTimes(userID, now.Add(-time.Hour), 5)
	if err != nil {
		return Signals{}, fmt.Errorf("fetch recent transaction times: %w", err)
	}

	return Signals{
		RecentTransactionCount: recentCount,
		DailyApprovedAmount:    dailyAmount,
		CandidateAmount:        amount,
		DuplicateReceipt:       duplicate,
		SuspiciousTiming:       RapidFire(times),
	}, nil
}
