package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/repository"
)

// scorerFunc adapts a function to the FraudScorer interface so tests can
// pin the score a transaction receives.
type scorerFunc func(userID uint, amount decimal.Decimal, receiptRef string) (float64, error)

func (f scorerFunc) CalculateFraudScore(userID uint, amount decimal.Decimal, receiptRef string) (float64, error) {
	return f(userID, amount, receiptRef)
}

func fixedScore(score float64) FraudScorer {
	return scorerFunc(func(uint, decimal.Decimal, string) (float64, error) {
		return score, nil
	})
}

func newTestProcessor(store repository.Store, scorer FraudScorer, cfg Config) *Processor {
	cfg.FraudDetectionEnabled = true
	return NewProcessor(store, scorer, cfg, zap.NewNop()).
		WithClock(func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		})
}

func TestProcessWalletTopupAutoApproved(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	p := newTestProcessor(store, fixedScore(0.1), Config{
		AutoApproveReceipts: true,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessWalletTopup(context.Background(), user.ID, decimal.NewFromInt(100_000), "REF-1", "")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusApproved, tx.Status)
	require.NotNil(t, tx.ApprovedAt)
	require.Equal(t, 0.1, tx.FraudScore)

	got, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(100_000)),
		"wallet must be credited exactly once, got %s", got.WalletBalance)
}

func TestProcessWalletTopupScoreAtThresholdStaysPending(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	p := newTestProcessor(store, fixedScore(0.3), Config{
		AutoApproveReceipts: true,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessWalletTopup(context.Background(), user.ID, decimal.NewFromInt(100_000), "REF-1", "")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, tx.Status)

	got, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.IsZero(), "pending top-up must not credit the wallet")
}

func TestProcessWalletTopupAutoApproveDisabled(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	p := newTestProcessor(store, fixedScore(0.0), Config{
		AutoApproveReceipts: false,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessWalletTopup(context.Background(), user.ID, decimal.NewFromInt(100_000), "REF-1", "")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, tx.Status, "a clean score still needs review when auto-approval is off")
}

func TestApproveTransactionCreditsOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	p := newTestProcessor(store, fixedScore(0.5), Config{
		AutoApproveReceipts: true,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessWalletTopup(context.Background(), user.ID, decimal.NewFromInt(250_000), "REF-1", "")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, tx.Status)

	ok, err := p.ApproveTransaction(tx.ID, 7, "checked manually")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(250_000)))

	// A second approval is a no-op, not a double credit.
	ok, err = p.ApproveTransaction(tx.ID, 7, "again")
	require.NoError(t, err)
	require.False(t, ok)

	got, err = store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(250_000)))
}

func TestRejectTransaction(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	p := newTestProcessor(store, fixedScore(0.9), Config{AutoApproveMaxScore: 0.3})

	tx, err := p.ProcessWalletTopup(context.Background(), user.ID, decimal.NewFromInt(100_000), "REF-1", "")
	require.NoError(t, err)

	ok, err := p.RejectTransaction(tx.ID, 7, "receipt looks forged")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Transactions().FindByID(tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusRejected, got.Status)
	require.Equal(t, "receipt looks forged", got.RejectedReason)

	u, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, u.WalletBalance.IsZero(), "rejection must never touch the wallet")

	// Rejected is terminal: neither approval nor a second rejection
	// does anything.
	ok, err = p.ApproveTransaction(tx.ID, 7, "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = p.RejectTransaction(tx.ID, 7, "again")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProcessPurchasePaymentWithoutReceipt(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	intent := &models.PurchaseIntent{
		UserID:           user.ID,
		AmountTotal:      decimal.NewFromInt(500_000),
		AmountPaidWallet: decimal.NewFromInt(500_000),
		AmountDueReceipt: decimal.Zero,
		Status:           models.IntentStatusPending,
	}
	require.NoError(t, store.Intents().Create(intent))

	p := newTestProcessor(store, fixedScore(0.0), Config{AutoApproveMaxScore: 0.3})

	tx, err := p.ProcessPurchasePayment(context.Background(), user.ID, intent.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusApproved, tx.Status)
	require.NotNil(t, tx.ApprovedAt)

	got, err := store.Intents().FindByID(intent.ID)
	require.NoError(t, err)
	require.Equal(t, models.IntentStatusPaid, got.Status)
	require.NotNil(t, got.ReceiptTransactionID)
	require.Equal(t, tx.ID, *got.ReceiptTransactionID)

	// Payment covered by the wallet beforehand; settling the record
	// must not credit anything back.
	u, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, u.WalletBalance.IsZero())
}

func TestProcessPurchasePaymentReceiptAutoApproved(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	intent := &models.PurchaseIntent{
		UserID:           user.ID,
		AmountTotal:      decimal.NewFromInt(500_000),
		AmountDueReceipt: decimal.NewFromInt(500_000),
		Status:           models.IntentStatusPending,
	}
	require.NoError(t, store.Intents().Create(intent))

	p := newTestProcessor(store, fixedScore(0.1), Config{
		AutoApproveReceipts: true,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessPurchasePayment(context.Background(), user.ID, intent.ID, "REF-9")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusApproved, tx.Status)

	got, err := store.Intents().FindByID(intent.ID)
	require.NoError(t, err)
	require.Equal(t, models.IntentStatusPaid, got.Status)
}

func TestProcessPurchasePaymentReceiptStaysPending(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{TelegramID: 100})

	intent := &models.PurchaseIntent{
		UserID:           user.ID,
		AmountTotal:      decimal.NewFromInt(500_000),
		AmountDueReceipt: decimal.NewFromInt(500_000),
		Status:           models.IntentStatusPending,
	}
	require.NoError(t, store.Intents().Create(intent))

	p := newTestProcessor(store, fixedScore(0.6), Config{
		AutoApproveReceipts: true,
		AutoApproveMaxScore: 0.3,
	})

	tx, err := p.ProcessPurchasePayment(context.Background(), user.ID, intent.ID, "REF-9")
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, tx.Status)

	got, err := store.Intents().FindByID(intent.ID)
	require.NoError(t, err)
	require.Equal(t, models.IntentStatusPending, got.Status, "intent settles only when its transaction does")
	require.NotNil(t, got.ReceiptTransactionID, "pending intent is still linked to its transaction")

	// Admin approval settles both.
	ok, err := p.ApproveTransaction(tx.ID, 7, "")
	require.NoError(t, err)
	require.True(t, ok)

	got, err = store.Intents().FindByID(intent.ID)
	require.NoError(t, err)
	require.Equal(t, models.IntentStatusPaid, got.Status)
}

func TestProcessWalletDeduction(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{
		TelegramID:    100,
		WalletBalance: decimal.NewFromInt(300_000),
	})

	p := newTestProcessor(store, fixedScore(0.0), Config{})

	ok, err := p.ProcessWalletDeduction(user.ID, decimal.NewFromInt(200_000), "plan purchase")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(100_000)))

	txs, err := store.Transactions().FindByUserID(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.True(t, txs[0].Amount.Equal(decimal.NewFromInt(-200_000)), "ledger records the debit as negative")
	require.Equal(t, models.TxStatusApproved, txs[0].Status)
}

func TestProcessWalletDeductionInsufficient(t *testing.T) {
	store := repository.NewMemoryStore()
	user := store.AddUser(models.User{
		TelegramID:    100,
		WalletBalance: decimal.NewFromInt(50_000),
	})

	p := newTestProcessor(store, fixedScore(0.0), Config{})

	ok, err := p.ProcessWalletDeduction(user.ID, decimal.NewFromInt(200_000), "plan purchase")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := store.Users().FindByID(user.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(50_000)), "failed deduction must leave the balance alone")

	txs, err := store.Transactions().FindByUserID(user.ID, 10)
	require.NoError(t, err)
	require.Empty(t, txs, "failed deduction must not leave a ledger record")
}

func TestTransferBalance(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := store.AddUser(models.User{TelegramID: 100, WalletBalance: decimal.NewFromInt(300_000)})
	bob := store.AddUser(models.User{TelegramID: 200})

	p := newTestProcessor(store, fixedScore(0.0), Config{})

	ok, err := p.TransferBalance(alice.ID, bob.ID, decimal.NewFromInt(120_000), "")
	require.NoError(t, err)
	require.True(t, ok)

	a, err := store.Users().FindByID(alice.ID)
	require.NoError(t, err)
	require.True(t, a.WalletBalance.Equal(decimal.NewFromInt(180_000)))

	b, err := store.Users().FindByID(bob.ID)
	require.NoError(t, err)
	require.True(t, b.WalletBalance.Equal(decimal.NewFromInt(120_000)))

	aTxs, err := store.Transactions().FindByUserID(alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, aTxs, 1)
	require.Equal(t, models.TxKindTransfer, aTxs[0].Kind)
}

func TestTransferBalanceInsufficient(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := store.AddUser(models.User{TelegramID: 100, WalletBalance: decimal.NewFromInt(10_000)})
	bob := store.AddUser(models.User{TelegramID: 200})

	p := newTestProcessor(store, fixedScore(0.0), Config{})

	ok, err := p.TransferBalance(alice.ID, bob.ID, decimal.NewFromInt(120_000), "")
	require.NoError(t, err)
	require.False(t, ok)

	a, err := store.Users().FindByID(alice.ID)
	require.NoError(t, err)
	require.True(t, a.WalletBalance.Equal(decimal.NewFromInt(10_000)))

	b, err := store.Users().FindByID(bob.ID)
	require.NoError(t, err)
	require.True(t, b.WalletBalance.IsZero())
}

func TestRandomCard(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestProcessor(store, fixedScore(0.0), Config{})

	_, err := p.RandomCard()
	require.ErrorIs(t, err, repository.ErrNotFound)

	store.AddCard(models.PaymentCard{HolderName: "A", CardNumber: "6037000011112222", Active: true})
	store.AddCard(models.PaymentCard{HolderName: "B", CardNumber: "6037000011113333", Active: false})

	card, err := p.RandomCard()
	require.NoError(t, err)
	require.Equal(t, "A", card.HolderName, "inactive cards are never presented")
}

func TestActiveCardsPrimaryFirst(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddCard(models.PaymentCard{HolderName: "B", CardNumber: "6037000011113333", Active: true, SortOrder: 1})
	store.AddCard(models.PaymentCard{HolderName: "A", CardNumber: "6037000011112222", Active: true, IsPrimary: true, SortOrder: 2})

	p := newTestProcessor(store, fixedScore(0.0), Config{})

	cards, err := p.ActiveCards()
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Equal(t, "A", cards[0].HolderName)
}
