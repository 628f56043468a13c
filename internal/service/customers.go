package service

import (
	"context"
	"log"
	"strings"
	"time"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

// LookupCustomer returns the ledger entry for a phone number without
// changing it.
func (s *Service) LookupCustomer(ctx context.Context, phone string) (domain.CustomerRecord, error) {
	phone = strings.TrimSpace(phone)
	if !IsValidPhone(phone) {
		return domain.CustomerRecord{}, invalid(ErrInvalidPhone)
	}
	record, err := s.repo.GetCustomer(ctx, phone)
	if err != nil {
		return domain.CustomerRecord{}, err
	}
	return *record, nil
}

// recordVisit credits a cash-basis payment to the customer's ledger. It is
// best-effort: failures are logged and never surface to the caller.
func (s *Service) recordVisit(ctx context.Context, customer *domain.CustomerRef, amountPaise int64, at time.Time) {
	if customer == nil || !IsValidPhone(customer.Phone) {
		return
	}
	_, err := s.repo.UpsertCustomer(ctx, store.CustomerVisit{
		Phone:       customer.Phone,
		Name:        customer.Name,
		AmountPaise: amountPaise,
		Note:        customer.Note,
		At:          at,
	})
	if err != nil {
		log.Printf("[service] WARN: failed to update customer ledger phone=%s: %v", maskPhone(customer.Phone), err)
	}
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
