package repository

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// TransactionRepository handles transaction database operations.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

// FindByID finds a transaction by ID.
func (r *TransactionRepository) FindByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindPending returns pending transactions for admin review, newest first.
func (r *TransactionRepository) FindPending(limit, page int) ([]models.Transaction, int64, error) {
	var txs []models.Transaction
	var total int64

	db := r.db.Model(&models.Transaction{}).Where("status = ?", models.TxStatusPending)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// FindByUserID returns a user's transactions, newest first.
func (r *TransactionRepository) FindByUserID(userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txs []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&txs).Error
	return txs, err
}

// MarkApproved transitions pending -> approved. The WHERE clause carries
// the pending precondition so concurrent approvals cannot both win.
func (r *TransactionRepository) MarkApproved(id uint, adminID int64, at time.Time, description string) (bool, error) {
	updates := map[string]interface{}{
		"status":               models.TxStatusApproved,
		"approved_by_admin_id": adminID,
		"approved_at":          at,
	}
	if description != "" {
		updates["description"] = description
	}
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRejected transitions pending -> rejected, same CAS contract as MarkApproved.
func (r *TransactionRepository) MarkRejected(id uint, adminID int64, at time.Time, reason string) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Updates(map[string]interface{}{
			"status":               models.TxStatusRejected,
			"approved_by_admin_id": adminID,
			"approved_at":          at,
			"rejected_reason":      reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountSince counts a user's transactions created after `since`.
func (r *TransactionRepository) CountSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// SumApprovedSince sums a user's approved transaction amounts after `since`.
func (r *TransactionRepository) SumApprovedSince(userID uint, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ? AND status = ?", userID, since, models.TxStatusApproved).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	return sum, err
}

// ReceiptRefInUse reports whether a receipt reference is already attached
// to a pending or approved transaction.
func (r *TransactionRepository) ReceiptRefInUse(receiptRef string) (bool, error) {
	if receiptRef == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("receipt_ref = ? AND status IN ?", receiptRef,
			[]string{models.TxStatusPending, models.TxStatusApproved}).
		Count(&count).Error
	return count > 0, err
}

// RecentCreatedTimes returns creation times of the user's latest
// transactions after `since`, newest first.
func (r *TransactionRepository) RecentCreatedTimes(userID uint, since time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 5
	}
	var times []time.Time
	err := r.db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").Limit(limit).
		Pluck("created_at", &times).Error
	return times, err
}
