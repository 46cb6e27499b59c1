package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vendbot/internal/models"
)

// MemoryStore is an in-memory Store used by unit tests, so the payment
// and provisioning logic can be exercised without a running database.
// It mirrors the semantics tests depend on: copies out of reads,
// expression-based balance adjustment, CAS status transitions.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[uint]models.User
	txs       map[uint]models.Transaction
	intents   map[uint]models.PurchaseIntent
	services  map[uint]models.Service
	cards     []models.PaymentCard
	plans     map[uint]models.Plan
	servers   map[uint]models.Server
	referrals []models.ReferralEvent
	seq       uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uint]models.User),
		txs:      make(map[uint]models.Transaction),
		intents:  make(map[uint]models.PurchaseIntent),
		services: make(map[uint]models.Service),
		plans:    make(map[uint]models.Plan),
		servers:  make(map[uint]models.Server),
	}
}

func (s *MemoryStore) nextID() uint {
	s.seq++
	return s.seq
}

// Seed helpers.

func (s *MemoryStore) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u
}

func (s *MemoryStore) AddPlan(p models.Plan) models.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	s.plans[p.ID] = p
	return p
}

func (s *MemoryStore) AddServer(sv models.Server) models.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv.ID == 0 {
		sv.ID = s.nextID()
	}
	s.servers[sv.ID] = sv
	return sv
}

func (s *MemoryStore) AddCard(c models.PaymentCard) models.PaymentCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	s.cards = append(s.cards, c)
	return c
}

// ReferralEvents returns a snapshot of recorded referral events.
func (s *MemoryStore) ReferralEvents() []models.ReferralEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReferralEvent, len(s.referrals))
	copy(out, s.referrals)
	return out
}

// Store accessors.

func (s *MemoryStore) Users() UserStore               { return memUsers{s} }
func (s *MemoryStore) Transactions() TransactionStore { return memTxs{s} }
func (s *MemoryStore) Intents() IntentStore           { return memIntents{s} }
func (s *MemoryStore) Services() ServiceStore         { return memServices{s} }
func (s *MemoryStore) Cards() CardStore               { return memCards{s} }
func (s *MemoryStore) Catalog() CatalogStore          { return memCatalog{s} }
func (s *MemoryStore) Referrals() ReferralStore       { return memReferrals{s} }

// Atomic runs fn against the same store. Unit tests are single-writer,
// so the all-or-nothing property is enforced by the callers'
// check-before-mutate ordering rather than rollback.
func (s *MemoryStore) Atomic(fn func(Store) error) error {
	return fn(s)
}

type memUsers struct{ s *MemoryStore }

func (m memUsers) FindByID(id uint) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (m memUsers) FindByTelegramID(telegramID int64) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.TelegramID == telegramID {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m memUsers) Create(user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.s.nextID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.s.users[user.ID] = *user
	return nil
}

func (m memUsers) AddBalance(id uint, delta decimal.Decimal) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.WalletBalance = u.WalletBalance.Add(delta)
	m.s.users[id] = u
	return nil
}

func (m memUsers) TouchLastSeen(id uint, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastSeenAt = &at
	m.s.users[id] = u
	return nil
}

type memTxs struct{ s *MemoryStore }

func (m memTxs) Create(tx *models.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = m.s.nextID()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	m.s.txs[tx.ID] = *tx
	return nil
}

func (m memTxs) FindByID(id uint) (*models.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tx, ok := m.s.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := tx
	return &out, nil
}

func (m memTxs) FindPending(limit, page int) ([]models.Transaction, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []models.Transaction
	for _, tx := range m.s.txs {
		if tx.Status == models.TxStatusPending {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m memTxs) FindByUserID(userID uint, limit int) ([]models.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memTxs) MarkApproved(id uint, adminID int64, at time.Time, description string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tx, ok := m.s.txs[id]
	if !ok || tx.Status != models.TxStatusPending {
		return false, nil
	}
	tx.Status = models.TxStatusApproved
	tx.ApprovedByAdminID = &adminID
	tx.ApprovedAt = &at
	if description != "" {
		tx.Description = description
	}
	m.s.txs[id] = tx
	return true, nil
}

func (m memTxs) MarkRejected(id uint, adminID int64, at time.Time, reason string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tx, ok := m.s.txs[id]
	if !ok || tx.Status != models.TxStatusPending {
		return false, nil
	}
	tx.Status = models.TxStatusRejected
	tx.ApprovedByAdminID = &adminID
	tx.ApprovedAt = &at
	tx.RejectedReason = reason
	m.s.txs[id] = tx
	return true, nil
}

func (m memTxs) CountSince(userID uint, since time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var count int64
	for _, tx := range m.s.txs {
		if tx.UserID == userID && !tx.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m memTxs) SumApprovedSince(userID uint, since time.Time) (decimal.Decimal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range m.s.txs {
		if tx.UserID == userID && tx.Status == models.TxStatusApproved && !tx.CreatedAt.Before(since) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

func (m memTxs) ReceiptRefInUse(receiptRef string) (bool, error) {
	if receiptRef == "" {
		return false, nil
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, tx := range m.s.txs {
		if tx.ReceiptRef == receiptRef &&
			(tx.Status == models.TxStatusPending || tx.Status == models.TxStatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (m memTxs) RecentCreatedTimes(userID uint, since time.Time, limit int) ([]time.Time, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var times []time.Time
	for _, tx := range m.s.txs {
		if tx.UserID == userID && !tx.CreatedAt.Before(since) {
			times = append(times, tx.CreatedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	if limit > 0 && len(times) > limit {
		times = times[:limit]
	}
	return times, nil
}

type memIntents struct{ s *MemoryStore }

func (m memIntents) Create(intent *models.PurchaseIntent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if intent.ID == 0 {
		intent.ID = m.s.nextID()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	m.s.intents[intent.ID] = *intent
	return nil
}

func (m memIntents) FindByID(id uint) (*models.PurchaseIntent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	intent, ok := m.s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := intent
	return &out, nil
}

func (m memIntents) Update(id uint, updates map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	intent, ok := m.s.intents[id]
	if !ok {
		return ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "status":
			intent.Status = val.(string)
		case "receipt_transaction_id":
			switch v := val.(type) {
			case uint:
				intent.ReceiptTransactionID = &v
			case *uint:
				intent.ReceiptTransactionID = v
			}
		case "amount_paid_wallet":
			intent.AmountPaidWallet = val.(decimal.Decimal)
		}
	}
	m.s.intents[id] = intent
	return nil
}

type memServices struct{ s *MemoryStore }

func (m memServices) Create(svc *models.Service) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if svc.ID == 0 {
		svc.ID = m.s.nextID()
	}
	if svc.PurchasedAt.IsZero() {
		svc.PurchasedAt = time.Now().UTC()
	}
	m.s.services[svc.ID] = *svc
	return nil
}

func (m memServices) FindByID(id uint) (*models.Service, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	svc, ok := m.s.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := svc
	return &out, nil
}

func (m memServices) FindByUUID(uuid string) (*models.Service, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, svc := range m.s.services {
		if svc.UUID == uuid {
			out := svc
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m memServices) FindByUserID(userID uint) ([]models.Service, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Service
	for _, svc := range m.s.services {
		if svc.UserID == userID {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (m memServices) FindExpired(now time.Time) ([]models.Service, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Service
	for _, svc := range m.s.services {
		if svc.IsActive && svc.ExpiresAt != nil && svc.ExpiresAt.Before(now) {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (m memServices) Update(id uint, updates map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	svc, ok := m.s.services[id]
	if !ok {
		return ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "is_active":
			svc.IsActive = val.(bool)
		case "uuid":
			svc.UUID = val.(string)
		case "subscription_url":
			svc.SubscriptionURL = val.(string)
		case "expires_at":
			switch v := val.(type) {
			case time.Time:
				svc.ExpiresAt = &v
			case *time.Time:
				svc.ExpiresAt = v
			}
		}
	}
	m.s.services[id] = svc
	return nil
}

func (m memServices) Delete(id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.services, id)
	return nil
}

type memCards struct{ s *MemoryStore }

func (m memCards) FindActive() ([]models.PaymentCard, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.PaymentCard
	for _, c := range m.s.cards {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memCatalog struct{ s *MemoryStore }

func (m memCatalog) FindPlan(id uint) (*models.Plan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m memCatalog) FindServer(id uint) (*models.Server, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sv, ok := m.s.servers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := sv
	return &out, nil
}

type memReferrals struct{ s *MemoryStore }

func (m memReferrals) Create(ev *models.ReferralEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = m.s.nextID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.s.referrals = append(m.s.referrals, *ev)
	return nil
}
