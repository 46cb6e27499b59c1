package repository

import (
	"gorm.io/gorm"
)

// GormStore is the MySQL-backed Store. Atomic opens a gorm transaction
// and hands callers a store view bound to it.
type GormStore struct {
	db           *gorm.DB
	users        *UserRepository
	transactions *TransactionRepository
	intents      *IntentRepository
	services     *ServiceRepository
	cards        *CardRepository
	catalog      *CatalogRepository
	referrals    *ReferralRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		users:        NewUserRepository(db),
		transactions: NewTransactionRepository(db),
		intents:      NewIntentRepository(db),
		services:     NewServiceRepository(db),
		cards:        NewCardRepository(db),
		catalog:      NewCatalogRepository(db),
		referrals:    NewReferralRepository(db),
	}
}

func (s *GormStore) Users() UserStore               { return s.users }
func (s *GormStore) Transactions() TransactionStore { return s.transactions }
func (s *GormStore) Intents() IntentStore           { return s.intents }
func (s *GormStore) Services() ServiceStore         { return s.services }
func (s *GormStore) Cards() CardStore               { return s.cards }
func (s *GormStore) Catalog() CatalogStore          { return s.catalog }
func (s *GormStore) Referrals() ReferralStore       { return s.referrals }

// Atomic runs fn inside a database transaction. The nested store is
// bound to the transaction handle, so every repository call within fn
// commits or rolls back as one unit.
func (s *GormStore) Atomic(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
