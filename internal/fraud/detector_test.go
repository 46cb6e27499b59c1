package fraud

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vendbot/internal/models"
	"vendbot/internal/repository"
)

func newDetector(t *testing.T, store *repository.MemoryStore, now time.Time) *Detector {
	t.Helper()
	return NewDetector(store, defaultThresholds()).WithClock(func() time.Time { return now })
}

func TestCalculateFraudScoreCleanUser(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, score)
}

func TestCalculateFraudScoreDuplicateReceipt(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})

	require.NoError(t, store.Transactions().Create(&models.Transaction{
		UserID:     user.ID,
		Amount:     decimal.NewFromInt(50_000),
		Kind:       models.TxKindWalletTopup,
		Status:     models.TxStatusApproved,
		ReceiptRef: "REF-DUP",
		CreatedAt:  now.Add(-2 * time.Hour),
	}))

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-DUP")
	require.NoError(t, err)
	require.Equal(t, 0.5, score)
}

func TestCalculateFraudScoreRejectedReceiptReusable(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})

	require.NoError(t, store.Transactions().Create(&models.Transaction{
		UserID:     user.ID,
		Amount:     decimal.NewFromInt(50_000),
		Kind:       models.TxKindWalletTopup,
		Status:     models.TxStatusRejected,
		ReceiptRef: "REF-REJ",
		CreatedAt:  now.Add(-2 * time.Hour),
	}))

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-REJ")
	require.NoError(t, err)
	require.Equal(t, 0.0, score)
}

func TestCalculateFraudScoreDailyVolume(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})

	// 11 transactions in the last day, spaced out to avoid the
	// rapid-fire signal, total approved amount well over the cap.
	for i := 0; i < 11; i++ {
		require.NoError(t, store.Transactions().Create(&models.Transaction{
			UserID:    user.ID,
			Amount:    decimal.NewFromInt(1_000_000),
			Kind:      models.TxKindWalletTopup,
			Status:    models.TxStatusApproved,
			CreatedAt: now.Add(-time.Duration(2+i) * time.Hour),
		}))
	}

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-1")
	require.NoError(t, err)
	// 0.3 for the count plus 0.4 for the amount.
	require.InDelta(t, 0.7, score, 1e-9)
}

func TestCalculateFraudScoreRapidFire(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Transactions().Create(&models.Transaction{
			UserID:    user.ID,
			Amount:    decimal.NewFromInt(10_000),
			Kind:      models.TxKindWalletTopup,
			Status:    models.TxStatusPending,
			CreatedAt: now.Add(-time.Duration(i*20) * time.Second),
		}))
	}

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-1")
	require.NoError(t, err)
	require.InDelta(t, 0.2, score, 1e-9)
}

func TestCalculateFraudScoreIgnoresOtherUsers(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := store.AddUser(models.User{TelegramID: 100})
	other := store.AddUser(models.User{TelegramID: 200})

	for i := 0; i < 15; i++ {
		require.NoError(t, store.Transactions().Create(&models.Transaction{
			UserID:    other.ID,
			Amount:    decimal.NewFromInt(2_000_000),
			Kind:      models.TxKindWalletTopup,
			Status:    models.TxStatusApproved,
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		}))
	}

	d := newDetector(t, store, now)
	score, err := d.CalculateFraudScore(user.ID, decimal.NewFromInt(100_000), "REF-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, score)
}
