package store

import (
	"context"
	"errors"
	"time"

	"dukaan/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// UnknownCustomerName names a ledger entry first seen without a name.
const UnknownCustomerName = "Unknown"

// CustomerVisit is one cash-basis contribution to a customer's ledger entry.
// A blank Name or Note leaves the remembered value in place.
type CustomerVisit struct {
	Phone       string
	Name        string
	AmountPaise int64
	Note        string
	At          time.Time
}

// OrderUpdate replaces the status and payment block of an order, provided the
// order is currently in one of ExpectStatuses.
type OrderUpdate struct {
	ID             string
	ExpectStatuses []string
	Status         string
	Payment        domain.Payment
}

type Repository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeductStock(ctx context.Context, itemID string, qty int) (int, error)
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error)
	ListOrders(ctx context.Context) ([]domain.Transaction, error)
	UpdateOrder(ctx context.Context, update OrderUpdate) (*domain.Transaction, error)
	DeleteTransactions(ctx context.Context, from time.Time, to time.Time) (int, error)
	SumRevenue(ctx context.Context) (int64, error)
	GetCustomer(ctx context.Context, phone string) (*domain.CustomerRecord, error)
	UpsertCustomer(ctx context.Context, visit CustomerVisit) (*domain.CustomerRecord, error)
	GetMilestoneState(ctx context.Context) (*domain.MilestoneState, error)
	SaveMilestoneState(ctx context.Context, state domain.MilestoneState) error
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
