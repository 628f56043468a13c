package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

func TestUpdateOrderChecksKindAndStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	order, err := s.CreateTransaction(ctx, domain.Transaction{Kind: domain.KindOrder, Status: domain.TxStatusPending, TotalValuePaise: 1000})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	sale, _ := s.CreateTransaction(ctx, domain.Transaction{Kind: domain.KindSale, Status: domain.TxStatusCompleted})

	update := store.OrderUpdate{
		ID:             order.ID,
		ExpectStatuses: []string{domain.TxStatusPending, domain.TxStatusReady},
		Status:         domain.TxStatusCompleted,
		Payment:        domain.Payment{Status: domain.PaymentStatusPaid},
	}
	updated, err := s.UpdateOrder(ctx, update)
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Status != domain.TxStatusCompleted || updated.TotalValuePaise != 1000 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := s.UpdateOrder(ctx, update); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second update to lose, got %v", err)
	}
	update.ID = sale.ID
	if _, err := s.UpdateOrder(ctx, update); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected sale to be rejected, got %v", err)
	}
	update.ID = "tx-missing"
	if _, err := s.UpdateOrder(ctx, update); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeductStockStopsAtZero(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	remaining, err := s.DeductStock(ctx, "item-pineapple-cake", 5)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected stock clamped at 0, got %d", remaining)
	}
	if _, err := s.DeductStock(ctx, "item-gone", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestSumRevenueCountsCompletedTakingsOnly(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, tx := range []domain.Transaction{
		{Kind: domain.KindSale, Status: domain.TxStatusCompleted, AmountPaise: 500},
		{Kind: domain.KindOrder, Status: domain.TxStatusPending, AmountPaise: 300},
		{Kind: domain.KindOrder, Status: domain.TxStatusCompleted, AmountPaise: 1000},
		{Kind: domain.KindSettlement, Status: domain.TxStatusCompleted, AmountPaise: 200},
		{Kind: domain.KindExpense, Status: domain.TxStatusCompleted, AmountPaise: 9999},
	} {
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	total, err := s.SumRevenue(ctx)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 1700 {
		t.Fatalf("expected 1700, got %d", total)
	}
}

func TestUpsertCustomerAddsVisits(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: "9876543210", Name: "Ravi", AmountPaise: 500, Note: "eggless", At: first}); err != nil {
		t.Fatalf("first visit: %v", err)
	}
	record, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: "9876543210", Name: "Ravi K", AmountPaise: 300, At: first.Add(time.Hour)})
	if err != nil {
		t.Fatalf("second visit: %v", err)
	}
	if record.VisitCount != 2 || record.TotalSpentPaise != 800 {
		t.Fatalf("expected 2 visits and 800 spent, got %d %d", record.VisitCount, record.TotalSpentPaise)
	}
	if record.Name != "Ravi K" || !record.LastVisit.Equal(first.Add(time.Hour)) {
		t.Fatalf("expected latest name and visit, got %+v", record)
	}
}

func TestUpsertCustomerKeepsRememberedNote(t *testing.T) {
	s := New()
	ctx := context.Background()

	record, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: "9123456780", AmountPaise: 200, Note: "no nuts"})
	if err != nil {
		t.Fatalf("first visit: %v", err)
	}
	if record.Name != store.UnknownCustomerName {
		t.Fatalf("expected unnamed customer to be %q, got %q", store.UnknownCustomerName, record.Name)
	}

	if _, err := s.UpsertCustomer(ctx, store.CustomerVisit{Phone: "9123456780", Name: "Meera", AmountPaise: 100}); err != nil {
		t.Fatalf("second visit: %v", err)
	}
	record, err = s.UpsertCustomer(ctx, store.CustomerVisit{Phone: "9123456780", AmountPaise: 100, Note: "  "})
	if err != nil {
		t.Fatalf("third visit: %v", err)
	}
	if record.Name != "Meera" || record.LastNote != "no nuts" || record.VisitCount != 3 {
		t.Fatalf("expected name and note kept on plain visits, got %+v", record)
	}
}

func TestMilestoneStateAbsentUntilSaved(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetMilestoneState(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found before first save, got %v", err)
	}
	state := domain.MilestoneState{TrackingStartedAt: time.Now().UTC(), Celebrated: []int64{1000000}}
	if err := s.SaveMilestoneState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state.Celebrated[0] = 1

	got, err := s.GetMilestoneState(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Celebrated) != 1 || got.Celebrated[0] != 1000000 {
		t.Fatalf("expected stored state isolated from caller, got %+v", got.Celebrated)
	}
}
