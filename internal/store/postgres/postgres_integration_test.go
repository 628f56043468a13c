package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("DUKAAN_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set DUKAAN_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx, false); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSettleOrderUpdateIsConditional(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE terminal_id = $1`, itemID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	})

	if _, err := s.CreateItem(ctx, domain.Item{ID: itemID, Name: "Truffle IT", PricePaise: 100000, Category: "Cakes", Stock: 1}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	order, err := s.CreateTransaction(ctx, domain.Transaction{
		Kind:            domain.KindOrder,
		Items:           []domain.TransactionLine{{ItemID: itemID, Name: "Truffle IT", UnitPricePaise: 100000, Qty: 1, Category: "Cakes"}},
		TotalValuePaise: 100000,
		AmountPaise:     30000,
		Description:     "Order for Asha (later)",
		Customer:        &domain.CustomerRef{Name: "Asha", Phone: "9876543210"},
		Delivery:        &domain.DeliverySchedule{Date: "2026-01-02", Time: "18:00"},
		Payment: domain.Payment{
			Method:       domain.PaymentMethodCash,
			AdvancePaise: 30000,
			BalancePaise: 70000,
			Status:       domain.PaymentStatusPartial,
		},
		Status:     domain.TxStatusPending,
		TerminalID: itemID,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 frozen line, got %d", len(order.Items))
	}

	paidAt := time.Now().UTC()
	update := store.OrderUpdate{
		ID:             order.ID,
		ExpectStatuses: []string{domain.TxStatusPending, domain.TxStatusReady},
		Status:         domain.TxStatusCompleted,
		Payment: domain.Payment{
			Method:        domain.PaymentMethodCash,
			AdvancePaise:  30000,
			BalancePaise:  0,
			Status:        domain.PaymentStatusPaid,
			BalanceMethod: domain.PaymentMethodUPI,
			BalancePaidAt: &paidAt,
		},
	}
	updated, err := s.UpdateOrder(ctx, update)
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Status != domain.TxStatusCompleted || updated.Payment.BalanceMethod != domain.PaymentMethodUPI {
		t.Fatalf("unexpected updated order: %+v", updated)
	}
	if updated.Delivery == nil || updated.Delivery.Time != "18:00" {
		t.Fatalf("expected delivery to survive update, got %+v", updated.Delivery)
	}

	if _, err := s.UpdateOrder(ctx, update); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second settlement to be rejected, got %v", err)
	}

	remaining, err := s.DeductStock(ctx, itemID, 5)
	if err != nil {
		t.Fatalf("deduct stock: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected stock clamped at 0, got %d", remaining)
	}
}

func TestUpsertCustomerAccumulates(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	phone := fmt.Sprintf("9%09d", time.Now().UnixNano()%1_000_000_000)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE phone = $1`, phone)
	})

	if _, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: phone, Name: "Ravi", AmountPaise: 500}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	record, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: phone, Name: "Ravi K", AmountPaise: 300, Note: "less sugar"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if record.VisitCount != 2 || record.TotalSpentPaise != 800 {
		t.Fatalf("expected visits 2 spent 800, got %d %d", record.VisitCount, record.TotalSpentPaise)
	}
	if record.Name != "Ravi K" || record.LastNote != "less sugar" {
		t.Fatalf("expected latest name and note, got %+v", record)
	}

	record, err = s.UpsertCustomer(ctx, store.CustomerVisit{Phone: phone, AmountPaise: 100})
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if record.Name != "Ravi K" || record.LastNote != "less sugar" || record.VisitCount != 3 {
		t.Fatalf("expected blank visit to keep name and note, got %+v", record)
	}
}
