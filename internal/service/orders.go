package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

type SettlementOutcome string

const (
	SettlementSettled SettlementOutcome = "settled"
	SettlementPartial SettlementOutcome = "partial"
	SettlementFailed  SettlementOutcome = "failed"
)

const (
	StepUpdateOrder      = "update_order"
	StepCreateSettlement = "create_settlement"
)

// SettlementResult reports how far the settlement protocol got. A partial
// outcome means the order is marked paid but no settlement transaction
// exists for the collected balance.
type SettlementResult struct {
	Outcome    SettlementOutcome
	FailedStep string
	Order      *domain.Transaction
	Settlement *domain.Transaction
}

func (r SettlementResult) Response() domain.SettlementResponse {
	return domain.SettlementResponse{
		Outcome:    string(r.Outcome),
		FailedStep: r.FailedStep,
		Order:      r.Order,
		Settlement: r.Settlement,
	}
}

var openStatuses = []string{domain.TxStatusPending, domain.TxStatusReady}

// MarkReady moves a pending order to ready. Marking a ready order again is a
// no-op.
func (s *Service) MarkReady(ctx context.Context, orderID string) (domain.Transaction, error) {
	if err := requireCapability(ctx, domain.Actor.CanCheckout); err != nil {
		return domain.Transaction{}, err
	}

	order, err := s.repo.FindTransactionByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Transaction{}, err
	}
	if order.Kind != domain.KindOrder {
		return domain.Transaction{}, store.ErrInvalidTransition
	}
	switch order.Status {
	case domain.TxStatusReady:
		return *order, nil
	case domain.TxStatusPending:
	default:
		return domain.Transaction{}, store.ErrInvalidTransition
	}

	updated, err := s.repo.UpdateOrder(ctx, store.OrderUpdate{
		ID:             order.ID,
		ExpectStatuses: []string{domain.TxStatusPending},
		Status:         domain.TxStatusReady,
		Payment:        order.Payment,
	})
	if errors.Is(err, store.ErrInvalidTransition) {
		// Lost a race with another update; ready is still an acceptable end state.
		current, findErr := s.repo.FindTransactionByID(ctx, order.ID)
		if findErr == nil && current.Status == domain.TxStatusReady {
			return *current, nil
		}
		return domain.Transaction{}, err
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logAudit(ctx, "order_ready", "transaction", updated.ID, "")
	return *updated, nil
}

// InitiateDelivery hands an open order over to the customer, collecting any
// outstanding balance with method.
func (s *Service) InitiateDelivery(ctx context.Context, orderID string, method string) (SettlementResult, error) {
	if err := requireCapability(ctx, domain.Actor.CanCheckout); err != nil {
		return SettlementResult{Outcome: SettlementFailed}, err
	}
	method = defaultString(method, domain.PaymentMethodCash)
	if !isSupportedPaymentMethod(method) {
		return SettlementResult{Outcome: SettlementFailed}, invalid(ErrInvalidPaymentMethod)
	}

	order, err := s.repo.FindTransactionByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return SettlementResult{Outcome: SettlementFailed, FailedStep: StepUpdateOrder}, err
	}
	if !domain.IsOpenOrder(*order) {
		return SettlementResult{Outcome: SettlementFailed, FailedStep: StepUpdateOrder, Order: order}, store.ErrInvalidTransition
	}
	return s.SettleOrder(ctx, *order, method)
}

// SettleOrder runs the two-step settlement protocol: the order's payment
// block is closed with a conditional update, then a settlement transaction
// records the balance as cash received now. The second step only runs when
// a balance was outstanding.
func (s *Service) SettleOrder(ctx context.Context, order domain.Transaction, method string) (SettlementResult, error) {
	ctx = context.WithoutCancel(ctx)
	now := s.now().UTC()
	balance := order.Payment.BalancePaise

	payment := order.Payment
	payment.BalancePaise = 0
	payment.Status = domain.PaymentStatusPaid
	if balance > 0 {
		payment.BalanceMethod = method
		payment.BalancePaidAt = &now
	}

	updated, err := s.repo.UpdateOrder(ctx, store.OrderUpdate{
		ID:             order.ID,
		ExpectStatuses: openStatuses,
		Status:         domain.TxStatusCompleted,
		Payment:        payment,
	})
	if err != nil {
		result := SettlementResult{Outcome: SettlementFailed, FailedStep: StepUpdateOrder, Order: &order}
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			return result, err
		}
		return result, &PersistenceError{Op: "settle order", Err: err}
	}

	if balance <= 0 {
		s.logAudit(ctx, "order_delivered", "transaction", updated.ID, "balance=0")
		return SettlementResult{Outcome: SettlementSettled, Order: updated}, nil
	}

	settlement, err := s.repo.CreateTransaction(ctx, domain.Transaction{
		Kind:            domain.KindSettlement,
		CreatedAt:       now,
		Items:           []domain.TransactionLine{},
		TotalValuePaise: balance,
		AmountPaise:     balance,
		Description:     fmt.Sprintf("Balance for order #%s", shortID(order.ID)),
		Customer:        order.Customer,
		Payment:         domain.Payment{Method: method, Status: domain.PaymentStatusPaid},
		Status:          domain.TxStatusCompleted,
		OrderRef:        order.ID,
		TerminalID:      order.TerminalID,
		CreatedBy:       actorName(ctx),
	})
	if err != nil {
		log.Printf("[service] ERROR: order %s marked paid but settlement of %d paise not recorded: %v", order.ID, balance, err)
		s.logAudit(ctx, "settlement_inconsistent", "transaction", order.ID, fmt.Sprintf("balance=%d", balance))
		return SettlementResult{Outcome: SettlementPartial, FailedStep: StepCreateSettlement, Order: updated},
			fmt.Errorf("%w: %w", ErrSettlementInconsistent, &PersistenceError{Op: "create settlement", Err: err})
	}

	s.recordVisit(ctx, order.Customer, balance, now)
	s.logAudit(ctx, "order_delivered", "transaction", updated.ID, fmt.Sprintf("balance=%d,method=%s,settlement=%s", balance, method, settlement.ID))
	return SettlementResult{Outcome: SettlementSettled, Order: updated, Settlement: settlement}, nil
}

// ListOrders returns orders matching the status filter and search query,
// earliest delivery first. Orders without a schedule sort last.
func (s *Service) ListOrders(ctx context.Context, filter string, query string) (domain.OrderListResponse, error) {
	filter = defaultString(strings.ToLower(filter), "open")
	if !slices.Contains([]string{"open", "all", domain.TxStatusPending, domain.TxStatusReady, domain.TxStatusCompleted}, filter) {
		return domain.OrderListResponse{}, invalid(ErrInvalidOrderFilter)
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.OrderListResponse{}, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Transaction, 0, len(orders))
	for _, order := range orders {
		if !matchesStatusFilter(order, filter) || !matchesQuery(order, query) {
			continue
		}
		result = append(result, order)
	}

	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		ka, kb := deliveryKey(a), deliveryKey(b)
		if ka != kb {
			switch {
			case ka == "":
				return 1
			case kb == "":
				return -1
			default:
				return strings.Compare(ka, kb)
			}
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return domain.OrderListResponse{Orders: result}, nil
}

func matchesStatusFilter(order domain.Transaction, filter string) bool {
	switch filter {
	case "all":
		return true
	case "open":
		return domain.IsOpenOrder(order)
	default:
		return order.Status == filter
	}
}

func matchesQuery(order domain.Transaction, query string) bool {
	if query == "" {
		return true
	}
	if strings.HasSuffix(strings.ToLower(order.ID), query) {
		return true
	}
	if order.Customer == nil {
		return false
	}
	return strings.Contains(strings.ToLower(order.Customer.Name), query) ||
		strings.Contains(order.Customer.Phone, query)
}

func deliveryKey(order domain.Transaction) string {
	if order.Delivery == nil || order.Delivery.Date == "" {
		return ""
	}
	return order.Delivery.Date + " " + order.Delivery.Time
}

func shortID(id string) string {
	if len(id) <= 6 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(id[len(id)-6:])
}
