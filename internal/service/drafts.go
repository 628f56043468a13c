package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"dukaan/backend/internal/cart"
	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

func newDraft(terminalID string) domain.Draft {
	return domain.Draft{
		TerminalID: terminalID,
		Mode:       domain.ModeSale,
		Handover:   domain.HandoverLater,
		Cart:       domain.Cart{Lines: []domain.CartLine{}},
		Payment:    domain.PaymentInput{Method: domain.PaymentMethodCash},
	}
}

// resetDraft is the draft left behind after a successful checkout. The
// delivery schedule is kept as an operator preference.
func resetDraft(d domain.Draft) domain.Draft {
	next := newDraft(d.TerminalID)
	next.Delivery = d.Delivery
	return next
}

func (s *Service) loadDraft(ctx context.Context, terminalID string) (domain.Draft, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.Draft{}, invalid(ErrMissingTerminal)
	}
	draft, found, err := s.drafts.Get(ctx, terminalID)
	if err != nil {
		return domain.Draft{}, &PersistenceError{Op: "load draft", Err: err}
	}
	if !found {
		return newDraft(terminalID), nil
	}
	return *draft, nil
}

func (s *Service) saveDraft(ctx context.Context, draft domain.Draft) error {
	draft.UpdatedAt = s.now().UTC()
	if err := s.drafts.Save(ctx, draft); err != nil {
		return &PersistenceError{Op: "save draft", Err: err}
	}
	return nil
}

func (s *Service) mutateDraft(ctx context.Context, terminalID string, mutate func(*domain.Draft) error) (domain.DraftResponse, error) {
	draft, err := s.loadDraft(ctx, terminalID)
	if err != nil {
		return domain.DraftResponse{}, err
	}
	if err := mutate(&draft); err != nil {
		return domain.DraftResponse{}, err
	}
	if _, err := cart.Total(draft.Cart); err != nil {
		return domain.DraftResponse{}, invalid(ErrAmountTooLarge)
	}
	if err := s.saveDraft(ctx, draft); err != nil {
		return domain.DraftResponse{}, err
	}
	return s.draftResponse(ctx, draft), nil
}

func (s *Service) GetDraft(ctx context.Context, terminalID string) (domain.DraftResponse, error) {
	draft, err := s.loadDraft(ctx, terminalID)
	if err != nil {
		return domain.DraftResponse{}, err
	}
	return s.draftResponse(ctx, draft), nil
}

func (s *Service) AddToCart(ctx context.Context, terminalID string, itemID string) (domain.DraftResponse, error) {
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return domain.DraftResponse{}, err
	}
	return s.mutateDraft(ctx, terminalID, func(d *domain.Draft) error {
		d.Cart = cart.Add(d.Cart, *item)
		return nil
	})
}

func (s *Service) AdjustCartQuantity(ctx context.Context, terminalID string, itemID string, delta int) (domain.DraftResponse, error) {
	return s.mutateDraft(ctx, terminalID, func(d *domain.Draft) error {
		if !cart.Contains(d.Cart, itemID) {
			return store.ErrNotFound
		}
		d.Cart = cart.SetQuantity(d.Cart, itemID, delta)
		return nil
	})
}

func (s *Service) SetCartNote(ctx context.Context, terminalID string, itemID string, note string) (domain.DraftResponse, error) {
	return s.mutateDraft(ctx, terminalID, func(d *domain.Draft) error {
		if !cart.Contains(d.Cart, itemID) {
			return store.ErrNotFound
		}
		d.Cart = cart.SetNote(d.Cart, itemID, strings.TrimSpace(note))
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, terminalID string) (domain.DraftResponse, error) {
	return s.mutateDraft(ctx, terminalID, func(d *domain.Draft) error {
		d.Cart = cart.Clear(d.Cart)
		return nil
	})
}

// DiscardDraft throws away everything entered on the terminal, customer and
// payment details included, and hands back a fresh draft. It is refused
// while a checkout on that terminal is still running.
func (s *Service) DiscardDraft(ctx context.Context, terminalID string) (domain.DraftResponse, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.DraftResponse{}, invalid(ErrMissingTerminal)
	}
	if !s.acquireCheckout(terminalID) {
		return domain.DraftResponse{}, ErrCheckoutInProgress
	}
	defer s.releaseCheckout(terminalID)

	if err := s.drafts.Delete(ctx, terminalID); err != nil {
		return domain.DraftResponse{}, &PersistenceError{Op: "discard draft", Err: err}
	}
	return s.draftResponse(ctx, newDraft(terminalID)), nil
}

// UpdateDraftDetails applies the non-cart parts of the draft. Only the
// fields present in the request change.
func (s *Service) UpdateDraftDetails(ctx context.Context, req domain.DraftDetailsRequest) (domain.DraftResponse, error) {
	return s.mutateDraft(ctx, req.TerminalID, func(d *domain.Draft) error {
		if req.Mode != nil {
			mode := strings.TrimSpace(*req.Mode)
			if mode != domain.ModeSale && mode != domain.ModeOrder {
				return invalid(ErrInvalidMode)
			}
			d.Mode = mode
		}
		if req.Handover != nil {
			handover := strings.TrimSpace(*req.Handover)
			if handover != domain.HandoverNow && handover != domain.HandoverLater {
				return invalid(ErrInvalidHandover)
			}
			d.Handover = handover
		}
		if req.Payment != nil {
			method := defaultString(req.Payment.Method, domain.PaymentMethodCash)
			if !isSupportedPaymentMethod(method) {
				return invalid(ErrInvalidPaymentMethod)
			}
			if _, err := ParsePaise(req.Payment.Advance); err != nil {
				return invalid(ErrInvalidAdvance)
			}
			d.Payment = domain.PaymentInput{Method: method, Advance: strings.TrimSpace(req.Payment.Advance)}
		}
		if req.Delivery != nil {
			delivery := *req.Delivery
			d.Delivery = &delivery
		}
		if req.Customer != nil {
			customer := domain.CustomerInput{
				Name:  strings.TrimSpace(req.Customer.Name),
				Phone: strings.TrimSpace(req.Customer.Phone),
				Note:  req.Customer.Note,
			}
			if customer.Name == "" && IsValidPhone(customer.Phone) {
				if known, err := s.repo.GetCustomer(ctx, customer.Phone); err == nil && known.Name != store.UnknownCustomerName {
					customer.Name = known.Name
				}
			}
			d.Customer = customer
		}
		return nil
	})
}

func (s *Service) draftResponse(ctx context.Context, draft domain.Draft) domain.DraftResponse {
	total, err := cart.Total(draft.Cart)
	if err != nil {
		log.Printf("[service] WARN: draft total out of range terminal=%s: %v", draft.TerminalID, err)
	}
	resp := domain.DraftResponse{Draft: draft, TotalPaise: total}

	if draft.Mode == domain.ModeOrder && draft.Handover == domain.HandoverLater {
		advance, err := ParsePaise(draft.Payment.Advance)
		if err == nil && advance <= total {
			resp.BalanceDuePaise = total - advance
		}
	}

	if IsValidPhone(draft.Customer.Phone) {
		known, err := s.repo.GetCustomer(ctx, draft.Customer.Phone)
		switch {
		case err == nil:
			resp.ReturningCustomer = known
		case !errors.Is(err, store.ErrNotFound):
			log.Printf("[service] WARN: customer lookup failed phone=%s: %v", maskPhone(draft.Customer.Phone), err)
		}
	}
	return resp
}
