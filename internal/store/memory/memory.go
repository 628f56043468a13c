package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	items            map[string]domain.Item
	transactionsByID map[string]*domain.Transaction
	customersByPhone map[string]domain.CustomerRecord
	milestone        *domain.MilestoneState
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Passwords come from SEED_ADMIN_PASSWORD, SEED_STAFF_PASSWORD and
// SEED_GUEST_PASSWORD; unset values fall back to dev defaults with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	guestPwd := envOr("SEED_GUEST_PASSWORD", "guest123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
		{"guest", guestPwd, domain.RoleGuest},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with only the seeded accounts.
func New() *Store {
	return &Store{
		items:            make(map[string]domain.Item),
		transactionsByID: make(map[string]*domain.Transaction),
		customersByPhone: make(map[string]domain.CustomerRecord),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	for _, item := range []domain.Item{
		{ID: "item-veg-puff", Name: "Veg Puff", PricePaise: 2500, Category: "Snacks", Stock: 45, Image: "🥐"},
		{ID: "item-black-forest", Name: "Black Forest (1kg)", PricePaise: 80000, Category: "Cakes", Stock: 2, Image: "🎂"},
		{ID: "item-choco-truffle", Name: "Chocolate Truffle", PricePaise: 55000, Category: "Cakes", Stock: 5, Image: "🍫"},
		{ID: "item-pineapple-cake", Name: "Pineapple Cake", PricePaise: 45000, Category: "Cakes", Stock: 3, Image: "🍰"},
		{ID: "item-coke", Name: "Coke (300ml)", PricePaise: 4000, Category: "Drinks", Stock: 45, Image: "🥤"},
		{ID: "item-chicken-puff", Name: "Chicken Puff", PricePaise: 3500, Category: "Snacks", Stock: 8, Image: "🍖"},
		{ID: "item-cupcake", Name: "Cupcake", PricePaise: 6000, Category: "Pastries", Stock: 15, Image: "🧁"},
		{ID: "item-donut", Name: "Donut", PricePaise: 8000, Category: "Pastries", Stock: 10, Image: "🍩"},
		{ID: "item-cold-coffee", Name: "Cold Coffee", PricePaise: 6500, Category: "Drinks", Stock: 20, Image: "☕"},
	} {
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return items, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" || item.PricePaise < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	s.items[item.ID] = item
	created := item
	return &created, nil
}

// DeductStock lowers an item's stock by qty, stopping at zero, and returns the
// remaining stock.
func (s *Store) DeductStock(_ context.Context, itemID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return 0, store.ErrNotFound
	}
	item.Stock = max(0, item.Stock-qty)
	s.items[itemID] = item
	return item.Stock, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Kind == "" || tx.Status == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if _, exists := s.transactionsByID[tx.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	stored := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = stored
	return cloneTransaction(stored), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactionsByID {
		if tx.Kind != domain.KindOrder {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *Store) UpdateOrder(_ context.Context, update store.OrderUpdate) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByID[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.Kind != domain.KindOrder || !slices.Contains(update.ExpectStatuses, tx.Status) {
		return nil, store.ErrInvalidTransition
	}
	tx.Status = update.Status
	tx.Payment = update.Payment
	if update.Payment.BalancePaidAt != nil {
		paidAt := update.Payment.BalancePaidAt.UTC()
		tx.Payment.BalancePaidAt = &paidAt
	}
	return cloneTransaction(tx), nil
}

func (s *Store) DeleteTransactions(_ context.Context, from time.Time, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, tx := range s.transactionsByID {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		delete(s.transactionsByID, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) SumRevenue(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, tx := range s.transactionsByID {
		if domain.IsRevenue(*tx) {
			total += tx.AmountPaise
		}
	}
	return total, nil
}

func (s *Store) GetCustomer(_ context.Context, phone string) (*domain.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.customersByPhone[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) UpsertCustomer(_ context.Context, visit store.CustomerVisit) (*domain.CustomerRecord, error) {
	if visit.Phone == "" || visit.AmountPaise < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if visit.At.IsZero() {
		visit.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.customersByPhone[visit.Phone]
	if !ok {
		record = domain.CustomerRecord{Phone: visit.Phone, Name: store.UnknownCustomerName}
	}
	if name := strings.TrimSpace(visit.Name); name != "" {
		record.Name = name
	}
	if note := strings.TrimSpace(visit.Note); note != "" {
		record.LastNote = note
	}
	record.VisitCount++
	record.TotalSpentPaise += visit.AmountPaise
	record.LastVisit = visit.At.UTC()
	s.customersByPhone[visit.Phone] = record
	result := record
	return &result, nil
}

func (s *Store) GetMilestoneState(_ context.Context) (*domain.MilestoneState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.milestone == nil {
		return nil, store.ErrNotFound
	}
	state := cloneMilestoneState(*s.milestone)
	return &state, nil
}

func (s *Store) SaveMilestoneState(_ context.Context, state domain.MilestoneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := cloneMilestoneState(state)
	s.milestone = &saved
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sortNewestFirst(txs []domain.Transaction) {
	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionLine, len(src.Items))
	copy(dupItems, src.Items)
	dup.Items = dupItems
	if src.Customer != nil {
		customer := *src.Customer
		dup.Customer = &customer
	}
	if src.Delivery != nil {
		delivery := *src.Delivery
		dup.Delivery = &delivery
	}
	if src.Payment.BalancePaidAt != nil {
		paidAt := *src.Payment.BalancePaidAt
		dup.Payment.BalancePaidAt = &paidAt
	}
	return &dup
}

func cloneMilestoneState(src domain.MilestoneState) domain.MilestoneState {
	dup := src
	dup.Celebrated = slices.Clone(src.Celebrated)
	return dup
}
