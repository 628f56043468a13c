package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dukaan/backend/internal/domain"
)

const dateLayout = "2006-01-02"

// ListTransactions returns transactions created on the days from..to
// inclusive. Blank bounds default to today.
func (s *Service) ListTransactions(ctx context.Context, from string, to string) ([]domain.Transaction, error) {
	start, end, err := s.parseDayRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, start, end)
}

// PurgeTransactions deletes every transaction created on the days from..to
// inclusive. Only admins may purge.
func (s *Service) PurgeTransactions(ctx context.Context, from string, to string) (domain.PurgeResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurgeResponse{}, err
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return domain.PurgeResponse{}, invalid(ErrInvalidRange)
	}
	start, end, err := s.parseDayRange(from, to)
	if err != nil {
		return domain.PurgeResponse{}, err
	}

	deleted, err := s.repo.DeleteTransactions(ctx, start, end)
	if err != nil {
		return domain.PurgeResponse{}, err
	}
	s.logAudit(ctx, "transactions_purge", "transaction", "", fmt.Sprintf("from=%s,to=%s,deleted=%d", from, to, deleted))
	return domain.PurgeResponse{Deleted: deleted, From: from, To: to}, nil
}

func (s *Service) parseDayRange(from string, to string) (time.Time, time.Time, error) {
	loc := s.now().Location()
	today := s.now().Format(dateLayout)
	from = defaultString(from, today)
	to = defaultString(to, from)

	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalid(ErrInvalidRange)
	}
	last, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil || last.Before(start) {
		return time.Time{}, time.Time{}, invalid(ErrInvalidRange)
	}
	return start.UTC(), last.AddDate(0, 0, 1).UTC(), nil
}

// RecordExpense writes money paid out of the till. Expenses never count as
// revenue.
func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Transaction, error) {
	if err := requireCapability(ctx, domain.Actor.CanCheckout); err != nil {
		return domain.Transaction{}, err
	}
	amount, err := ParsePaise(req.Amount)
	if err != nil || amount <= 0 {
		return domain.Transaction{}, invalid(ErrInvalidAmount)
	}
	method := defaultString(req.Method, domain.PaymentMethodCash)
	if !isSupportedPaymentMethod(method) {
		return domain.Transaction{}, invalid(ErrInvalidPaymentMethod)
	}

	created, err := s.repo.CreateTransaction(ctx, domain.Transaction{
		Kind:            domain.KindExpense,
		CreatedAt:       s.now().UTC(),
		Items:           []domain.TransactionLine{},
		TotalValuePaise: amount,
		AmountPaise:     amount,
		Description:     defaultString(req.Description, "Expense"),
		Payment:         domain.Payment{Method: method, Status: domain.PaymentStatusPaid},
		Status:          domain.TxStatusCompleted,
		CreatedBy:       actorName(ctx),
	})
	if err != nil {
		return domain.Transaction{}, &PersistenceError{Op: "create expense", Err: err}
	}
	s.logAudit(ctx, "expense", "transaction", created.ID, fmt.Sprintf("amount=%d", amount))
	return *created, nil
}

// Invoice returns the shareable view of a transaction. Open orders render as
// a booking slip, everything else as a tax invoice.
func (s *Service) Invoice(ctx context.Context, id string) (domain.InvoiceResponse, error) {
	tx, err := s.repo.FindTransactionByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.InvoiceResponse{}, err
	}
	return domain.InvoiceResponse{
		DocumentType: domain.DocumentType(*tx),
		ShopName:     s.shopName,
		Transaction:  *tx,
	}, nil
}
