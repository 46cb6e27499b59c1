package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/dedup"
	"vendbot/internal/fraud"
	"vendbot/internal/models"
	"vendbot/internal/repository"
)

// systemAdminID stamps transactions settled by auto-approval rather
// than a human reviewer.
const systemAdminID int64 = 0

// Config carries the processor's feature flags and thresholds.
type Config struct {
	FraudDetectionEnabled bool
	AutoApproveReceipts   bool
	// AutoApproveMaxScore is exclusive: a score equal to it still
	// requires manual review.
	AutoApproveMaxScore float64
}

// FraudScorer produces a [0,1] risk estimate for a prospective
// transaction.
type FraudScorer interface {
	CalculateFraudScore(userID uint, amount decimal.Decimal, receiptRef string) (float64, error)
}

// Processor orchestrates transaction creation, fraud scoring,
// approval and wallet mutation. Every financial mutation runs in one
// atomic store unit; no external calls happen inside it.
type Processor struct {
	store   repository.Store
	scorer  FraudScorer
	deduper dedup.ReceiptDeduper
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewProcessor(store repository.Store, scorer FraudScorer, cfg Config, logger *zap.Logger) *Processor {
	return &Processor{
		store:  store,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithDeduper attaches the advisory receipt fingerprint deduper.
func (p *Processor) WithDeduper(d dedup.ReceiptDeduper) *Processor {
	p.deduper = d
	return p
}

// WithClock overrides the processor's clock. Test hook.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// decideInitialStatus is the single place the auto-approval threshold
// is applied. A transaction without a receipt gate settles immediately;
// a gated one settles only under an enabled auto-approval and a score
// strictly below the threshold.
func decideInitialStatus(autoApprove bool, fraudScore float64, maxScore float64, hasReceiptGate bool) string {
	if !hasReceiptGate {
		return models.TxStatusApproved
	}
	if autoApprove && fraudScore < maxScore {
		return models.TxStatusApproved
	}
	return models.TxStatusPending
}

func (p *Processor) scoreIfEnabled(userID uint, amount decimal.Decimal, receiptRef string) float64 {
	if !p.cfg.FraudDetectionEnabled || p.scorer == nil {
		return 0
	}
	score, err := p.scorer.CalculateFraudScore(userID, amount, receiptRef)
	if err != nil {
		// Scoring trouble must not block intake; the transaction
		// stays reviewable by an admin either way.
		p.logger.Warn("fraud scoring failed", zap.Uint("user_id", userID), zap.Error(err))
		return 0
	}
	return score
}

func (p *Processor) rememberFingerprint(ctx context.Context, userID uint, receiptRef string) {
	if p.deduper == nil || receiptRef == "" {
		return
	}
	fp := fraud.ReceiptFingerprint(receiptRef, userID, p.now())
	seen, err := p.deduper.Seen(ctx, fp)
	if err != nil {
		p.logger.Warn("receipt fingerprint bookkeeping failed", zap.Error(err))
		return
	}
	if seen {
		p.logger.Warn("receipt fingerprint resubmitted",
			zap.Uint("user_id", userID), zap.String("fingerprint", fp))
	}
}

// ProcessWalletTopup records a card-to-card wallet top-up. The
// transaction is created pending and, when auto-approval applies,
// settled in the same atomic unit.
func (p *Processor) ProcessWalletTopup(ctx context.Context, userID uint, amount decimal.Decimal, receiptRef, description string) (*models.Transaction, error) {
	score := p.scoreIfEnabled(userID, amount, receiptRef)
	p.rememberFingerprint(ctx, userID, receiptRef)

	if description == "" {
		description = fmt.Sprintf("Wallet top-up %s", amount.StringFixed(0))
	}

	tx := &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.TxKindWalletTopup,
		Status:      models.TxStatusPending,
		Description: description,
		ReceiptRef:  receiptRef,
		FraudScore:  score,
		Gateway:     "card_to_card",
		CreatedAt:   p.now().UTC(),
	}

	autoApprove := decideInitialStatus(p.cfg.AutoApproveReceipts, score, p.cfg.AutoApproveMaxScore, true) == models.TxStatusApproved

	err := p.store.Atomic(func(s repository.Store) error {
		if err := s.Transactions().Create(tx); err != nil {
			return fmt.Errorf("create topup transaction: %w", err)
		}
		if autoApprove {
			if err := p.settle(s, tx, systemAdminID, "auto approval"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("wallet topup recorded",
		zap.Uint("user_id", userID),
		zap.Uint("transaction_id", tx.ID),
		zap.String("status", tx.Status),
		zap.Float64("fraud_score", score))
	return tx, nil
}

// ProcessPurchasePayment records the payment leg of a purchase intent.
// The amount due is taken from the intent, never re-derived. The intent
// is linked to the transaction and marked paid only when the
// transaction settles in this call.
func (p *Processor) ProcessPurchasePayment(ctx context.Context, userID uint, intentID uint, receiptRef string) (*models.Transaction, error) {
	intent, err := p.store.Intents().FindByID(intentID)
	if err != nil {
		return nil, fmt.Errorf("load purchase intent %d: %w", intentID, err)
	}

	amount := intent.AmountDueReceipt
	hasReceiptGate := receiptRef != ""

	score := 0.0
	if hasReceiptGate {
		score = p.scoreIfEnabled(userID, amount, receiptRef)
		p.rememberFingerprint(ctx, userID, receiptRef)
	}

	status := decideInitialStatus(p.cfg.AutoApproveReceipts, score, p.cfg.AutoApproveMaxScore, hasReceiptGate)

	tx := &models.Transaction{
		UserID:           userID,
		Amount:           amount,
		Kind:             models.TxKindPurchase,
		Status:           models.TxStatusPending,
		Description:      fmt.Sprintf("Service purchase %s", amount.StringFixed(0)),
		ReceiptRef:       receiptRef,
		FraudScore:       score,
		Gateway:          "card_to_card",
		PurchaseIntentID: &intent.ID,
		CreatedAt:        p.now().UTC(),
	}

	err = p.store.Atomic(func(s repository.Store) error {
		if !hasReceiptGate {
			// Settled by other means (wallet or gateway): the
			// record is terminal at creation and never credits
			// the wallet.
			tx.Status = models.TxStatusApproved
			at := p.now().UTC()
			tx.ApprovedAt = &at
		}
		if err := s.Transactions().Create(tx); err != nil {
			return fmt.Errorf("create purchase transaction: %w", err)
		}

		intentUpdates := map[string]interface{}{
			"receipt_transaction_id": tx.ID,
		}
		if tx.Status == models.TxStatusApproved {
			intentUpdates["status"] = models.IntentStatusPaid
		}

		if hasReceiptGate && status == models.TxStatusApproved {
			if err := p.settle(s, tx, systemAdminID, "auto approval"); err != nil {
				return err
			}
			intentUpdates["status"] = models.IntentStatusPaid
		}

		if err := s.Intents().Update(intent.ID, intentUpdates); err != nil {
			return fmt.Errorf("link purchase intent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("purchase payment recorded",
		zap.Uint("user_id", userID),
		zap.Uint("intent_id", intent.ID),
		zap.Uint("transaction_id", tx.ID),
		zap.String("status", tx.Status))
	return tx, nil
}

// settle flips a pending transaction to approved and credits the
// owner's wallet by amount + bonus. Must be called inside an atomic
// unit; the pending precondition is re-checked by the CAS update.
func (p *Processor) settle(s repository.Store, tx *models.Transaction, adminID int64, notes string) error {
	description := tx.Description
	if notes != "" {
		description = description + " - " + notes
	}
	at := p.now().UTC()

	ok, err := s.Transactions().MarkApproved(tx.ID, adminID, at, description)
	if err != nil {
		return fmt.Errorf("approve transaction %d: %w", tx.ID, err)
	}
	if !ok {
		return fmt.Errorf("transaction %d no longer pending", tx.ID)
	}

	if err := s.Users().AddBalance(tx.UserID, tx.Amount.Add(tx.BonusAmount)); err != nil {
		return fmt.Errorf("credit wallet for transaction %d: %w", tx.ID, err)
	}

	tx.Status = models.TxStatusApproved
	tx.ApprovedByAdminID = &adminID
	tx.ApprovedAt = &at
	tx.Description = description
	return nil
}

// ApproveTransaction settles a pending transaction on behalf of an
// admin. Returns false without mutation when the transaction is not
// pending anymore.
func (p *Processor) ApproveTransaction(txID uint, adminID int64, notes string) (bool, error) {
	approved := false
	err := p.store.Atomic(func(s repository.Store) error {
		tx, err := s.Transactions().FindByID(txID)
		if err != nil {
			return err
		}
		if !tx.IsPending() {
			return nil
		}

		description := tx.Description
		if notes != "" {
			description = description + " - " + notes
		}
		at := p.now().UTC()

		ok, err := s.Transactions().MarkApproved(tx.ID, adminID, at, description)
		if err != nil {
			return fmt.Errorf("approve transaction %d: %w", tx.ID, err)
		}
		if !ok {
			// Lost the race to another reviewer.
			return nil
		}

		if err := s.Users().AddBalance(tx.UserID, tx.Amount.Add(tx.BonusAmount)); err != nil {
			return fmt.Errorf("credit wallet for transaction %d: %w", tx.ID, err)
		}

		// A linked purchase intent settles together with its
		// transaction.
		if tx.PurchaseIntentID != nil {
			err := s.Intents().Update(*tx.PurchaseIntentID, map[string]interface{}{
				"status": models.IntentStatusPaid,
			})
			if err != nil {
				return fmt.Errorf("settle purchase intent %d: %w", *tx.PurchaseIntentID, err)
			}
		}

		approved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if approved {
		p.logger.Info("transaction approved",
			zap.Uint("transaction_id", txID), zap.Int64("admin_id", adminID))
	}
	return approved, nil
}

// RejectTransaction rejects a pending transaction with a reason.
// Returns false without mutation when the transaction is not pending.
// The wallet is never touched.
func (p *Processor) RejectTransaction(txID uint, adminID int64, reason string) (bool, error) {
	rejected := false
	err := p.store.Atomic(func(s repository.Store) error {
		ok, err := s.Transactions().MarkRejected(txID, adminID, p.now().UTC(), reason)
		if err != nil {
			return fmt.Errorf("reject transaction %d: %w", txID, err)
		}
		rejected = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if rejected {
		p.logger.Info("transaction rejected",
			zap.Uint("transaction_id", txID), zap.Int64("admin_id", adminID), zap.String("reason", reason))
	}
	return rejected, nil
}

// ProcessWalletDeduction debits a user's wallet for a purchase. Returns
// false without any mutation when the balance is insufficient.
func (p *Processor) ProcessWalletDeduction(userID uint, amount decimal.Decimal, description string) (bool, error) {
	deducted := false
	err := p.store.Atomic(func(s repository.Store) error {
		user, err := s.Users().FindByID(userID)
		if err != nil {
			return err
		}
		if user.WalletBalance.LessThan(amount) {
			return nil
		}

		at := p.now().UTC()
		tx := &models.Transaction{
			UserID:      userID,
			Amount:      amount.Neg(),
			Kind:        models.TxKindPurchase,
			Status:      models.TxStatusApproved,
			Description: description,
			Gateway:     "wallet",
			ApprovedAt:  &at,
			CreatedAt:   at,
		}
		if err := s.Transactions().Create(tx); err != nil {
			return fmt.Errorf("create deduction transaction: %w", err)
		}
		if err := s.Users().AddBalance(userID, amount.Neg()); err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		deducted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deducted, nil
}

// TransferBalance moves balance between two users. Both legs commit
// together or neither does; returns false without mutation when the
// sender's balance is insufficient.
func (p *Processor) TransferBalance(fromUserID, toUserID uint, amount decimal.Decimal, description string) (bool, error) {
	transferred := false
	err := p.store.Atomic(func(s repository.Store) error {
		from, err := s.Users().FindByID(fromUserID)
		if err != nil {
			return err
		}
		to, err := s.Users().FindByID(toUserID)
		if err != nil {
			return err
		}
		if from.WalletBalance.LessThan(amount) {
			return nil
		}

		at := p.now().UTC()
		debitDesc := description
		creditDesc := description
		if description == "" {
			debitDesc = fmt.Sprintf("Transfer to user %d", to.TelegramID)
			creditDesc = fmt.Sprintf("Transfer from user %d", from.TelegramID)
		}

		debit := &models.Transaction{
			UserID:      from.ID,
			Amount:      amount.Neg(),
			Kind:        models.TxKindTransfer,
			Status:      models.TxStatusApproved,
			Description: debitDesc,
			Gateway:     "wallet",
			ApprovedAt:  &at,
			CreatedAt:   at,
		}
		credit := &models.Transaction{
			UserID:      to.ID,
			Amount:      amount,
			Kind:        models.TxKindTransfer,
			Status:      models.TxStatusApproved,
			Description: creditDesc,
			Gateway:     "wallet",
			ApprovedAt:  &at,
			CreatedAt:   at,
		}

		if err := s.Transactions().Create(debit); err != nil {
			return fmt.Errorf("create transfer debit: %w", err)
		}
		if err := s.Transactions().Create(credit); err != nil {
			return fmt.Errorf("create transfer credit: %w", err)
		}
		if err := s.Users().AddBalance(from.ID, amount.Neg()); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := s.Users().AddBalance(to.ID, amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		transferred = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if transferred {
		p.logger.Info("balance transferred",
			zap.Uint("from_user_id", fromUserID),
			zap.Uint("to_user_id", toUserID),
			zap.String("amount", amount.String()))
	}
	return transferred, nil
}

// ActiveCards returns the active receiving cards, primary first.
func (p *Processor) ActiveCards() ([]models.PaymentCard, error) {
	return p.store.Cards().FindActive()
}

// RandomCard picks a card to present to the payer. A primary card is
// preferred 70% of the time so load still spreads across the rest.
func (p *Processor) RandomCard() (*models.PaymentCard, error) {
	cards, err := p.store.Cards().FindActive()
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, repository.ErrNotFound
	}
	for i := range cards {
		if cards[i].IsPrimary && rand.Float64() < 0.7 {
			return &cards[i], nil
		}
	}
	pick := cards[rand.Intn(len(cards))]
	return &pick, nil
}
