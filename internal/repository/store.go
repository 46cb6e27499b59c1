package repository

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"vendbot/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
// Callers can distinguish it from validation failures.
var ErrNotFound = errors.New("record not found")

// UserStore handles user reads and wallet mutations.
type UserStore interface {
	FindByID(id uint) (*models.User, error)
	FindByTelegramID(telegramID int64) (*models.User, error)
	Create(user *models.User) error
	// AddBalance adjusts the wallet by delta using an in-database
	// expression, so concurrent adjustments never lose updates.
	AddBalance(id uint, delta decimal.Decimal) error
	TouchLastSeen(id uint, at time.Time) error
}

// TransactionStore handles financial transaction persistence and the
// aggregate queries the fraud detector needs.
type TransactionStore interface {
	Create(tx *models.Transaction) error
	FindByID(id uint) (*models.Transaction, error)
	FindPending(limit, page int) ([]models.Transaction, int64, error)
	FindByUserID(userID uint, limit int) ([]models.Transaction, error)

	// MarkApproved flips pending -> approved with compare-and-set
	// semantics: it reports false when the row was no longer pending.
	MarkApproved(id uint, adminID int64, at time.Time, description string) (bool, error)
	// MarkRejected flips pending -> rejected, same CAS contract.
	MarkRejected(id uint, adminID int64, at time.Time, reason string) (bool, error)

	CountSince(userID uint, since time.Time) (int64, error)
	SumApprovedSince(userID uint, since time.Time) (decimal.Decimal, error)
	ReceiptRefInUse(receiptRef string) (bool, error)
	RecentCreatedTimes(userID uint, since time.Time, limit int) ([]time.Time, error)
}

// IntentStore handles purchase intents.
type IntentStore interface {
	Create(intent *models.PurchaseIntent) error
	FindByID(id uint) (*models.PurchaseIntent, error)
	Update(id uint, updates map[string]interface{}) error
}

// ServiceStore handles provisioned service records.
type ServiceStore interface {
	Create(svc *models.Service) error
	FindByID(id uint) (*models.Service, error)
	FindByUUID(uuid string) (*models.Service, error)
	FindByUserID(userID uint) ([]models.Service, error)
	FindExpired(now time.Time) ([]models.Service, error)
	Update(id uint, updates map[string]interface{}) error
	Delete(id uint) error
}

// CardStore exposes receiving payment cards, read-only.
type CardStore interface {
	FindActive() ([]models.PaymentCard, error)
}

// CatalogStore exposes plans and servers.
type CatalogStore interface {
	FindPlan(id uint) (*models.Plan, error)
	FindServer(id uint) (*models.Server, error)
}

// ReferralStore records referral bonus events.
type ReferralStore interface {
	Create(ev *models.ReferralEvent) error
}

// Store aggregates the entity stores and provides atomic units of work.
// Every financial mutation runs inside Atomic so wallet and status
// changes commit together or not at all.
type Store interface {
	Users() UserStore
	Transactions() TransactionStore
	Intents() IntentStore
	Services() ServiceStore
	Cards() CardStore
	Catalog() CatalogStore
	Referrals() ReferralStore

	// Atomic runs fn against a store view bound to a single database
	// transaction. Returning an error rolls everything back.
	Atomic(fn func(Store) error) error
}
