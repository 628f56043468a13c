package service

import (
	"fmt"
	"strings"
	"time"

	"dukaan/backend/internal/cart"
	"dukaan/backend/internal/domain"
)

const (
	defaultDeliveryLead = 2 * time.Hour
	defaultCategory     = "General"
	walkInCustomer      = "Walk-in"
)

// Compose turns a draft into the transaction it would record at now. It has
// no side effects; the returned transaction has no id yet.
func Compose(draft domain.Draft, now time.Time) (domain.Transaction, error) {
	if len(draft.Cart.Lines) == 0 {
		return domain.Transaction{}, invalid(ErrEmptyCart)
	}

	mode := defaultString(draft.Mode, domain.ModeSale)
	if mode != domain.ModeSale && mode != domain.ModeOrder {
		return domain.Transaction{}, invalid(ErrInvalidMode)
	}
	handover := defaultString(draft.Handover, domain.HandoverLater)
	if handover != domain.HandoverNow && handover != domain.HandoverLater {
		return domain.Transaction{}, invalid(ErrInvalidHandover)
	}
	method := defaultString(draft.Payment.Method, domain.PaymentMethodCash)
	if !isSupportedPaymentMethod(method) {
		return domain.Transaction{}, invalid(ErrInvalidPaymentMethod)
	}

	name := strings.TrimSpace(draft.Customer.Name)
	phone := strings.TrimSpace(draft.Customer.Phone)
	note := strings.TrimSpace(draft.Customer.Note)
	if phone != "" && !IsValidPhone(phone) {
		return domain.Transaction{}, invalid(ErrInvalidPhone)
	}

	total, err := cart.Total(draft.Cart)
	if err != nil {
		return domain.Transaction{}, invalid(ErrAmountTooLarge)
	}
	tx := domain.Transaction{
		CreatedAt:       now.UTC(),
		Items:           freezeLines(draft.Cart),
		TotalValuePaise: total,
		TerminalID:      draft.TerminalID,
	}

	if mode == domain.ModeSale {
		tx.Kind = domain.KindSale
		tx.AmountPaise = total
		tx.Status = domain.TxStatusCompleted
		tx.Payment = domain.Payment{Method: method, Status: domain.PaymentStatusPaid}
		tx.Description = fmt.Sprintf("Quick Sale (%d items)", len(draft.Cart.Lines))
		if name != "" || phone != "" {
			tx.Customer = &domain.CustomerRef{Name: name, Phone: phone, Note: note}
		}
		return tx, nil
	}

	tx.Kind = domain.KindOrder
	tx.Description = fmt.Sprintf("Order for %s (%s)", defaultString(name, "Customer"), handover)
	tx.Customer = &domain.CustomerRef{Name: defaultString(name, walkInCustomer), Phone: phone, Note: note}

	advance := total
	if handover == domain.HandoverLater {
		parsed, err := ParsePaise(draft.Payment.Advance)
		if err != nil || parsed > total {
			return domain.Transaction{}, invalid(ErrInvalidAdvance)
		}
		advance = parsed

		delivery, err := resolveDelivery(draft.Delivery, now)
		if err != nil {
			return domain.Transaction{}, err
		}
		tx.Delivery = delivery
	}

	balance := total - advance
	tx.AmountPaise = advance
	tx.Payment = domain.Payment{
		Method:       method,
		AdvancePaise: advance,
		BalancePaise: balance,
		Status:       domain.PaymentStatusPaid,
	}
	tx.Status = domain.TxStatusCompleted
	if balance > 0 {
		tx.Payment.Status = domain.PaymentStatusPartial
		tx.Status = domain.TxStatusPending
	}
	return tx, nil
}

func freezeLines(c domain.Cart) []domain.TransactionLine {
	lines := make([]domain.TransactionLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, domain.TransactionLine{
			ItemID:         line.ItemID,
			Name:           line.Name,
			UnitPricePaise: line.PricePaise,
			Qty:            line.Qty,
			Category:       defaultString(line.Category, defaultCategory),
			Note:           strings.TrimSpace(line.Note),
		})
	}
	return lines
}

// resolveDelivery fills blank parts of the schedule from now plus the
// default lead time.
func resolveDelivery(in *domain.DeliverySchedule, now time.Time) (*domain.DeliverySchedule, error) {
	fallback := now.Add(defaultDeliveryLead)
	out := domain.DeliverySchedule{
		Date: fallback.Format("2006-01-02"),
		Time: fallback.Format("15:04"),
	}
	if in == nil {
		return &out, nil
	}
	if date := strings.TrimSpace(in.Date); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, invalid(ErrInvalidDelivery)
		}
		out.Date = date
	}
	if clock := strings.TrimSpace(in.Time); clock != "" {
		if _, err := time.Parse("15:04", clock); err != nil {
			return nil, invalid(ErrInvalidDelivery)
		}
		out.Time = clock
	}
	return &out, nil
}

// IsValidPhone reports whether phone is exactly ten ASCII digits.
func IsValidPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSupportedPaymentMethod(method string) bool {
	return method == domain.PaymentMethodCash || method == domain.PaymentMethodUPI
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
