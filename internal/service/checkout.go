package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"dukaan/backend/internal/domain"
)

type SubmissionState string

const (
	SubmissionPending   SubmissionState = "pending"
	SubmissionSucceeded SubmissionState = "succeeded"
	SubmissionFailed    SubmissionState = "failed"
)

// Submission tracks one checkout attempt. A failed submission still holds
// the draft exactly as the operator left it.
type Submission struct {
	mu          sync.Mutex
	state       SubmissionState
	tx          *domain.Transaction
	docType     string
	celebration *domain.Celebration
	preserved   domain.Draft
	printing    bool
	released    chan struct{}
	svc         *Service
}

func (sub *Submission) State() SubmissionState {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.state
}

func (sub *Submission) Transaction() *domain.Transaction {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.tx
}

// Released is closed once the terminal's checkout guard has been let go.
func (sub *Submission) Released() <-chan struct{} {
	return sub.released
}

// Rollback hands back the draft preserved by a failed submission and makes
// sure the scratch area holds it.
func (sub *Submission) Rollback(ctx context.Context) (domain.Draft, error) {
	sub.mu.Lock()
	state, draft := sub.state, sub.preserved
	sub.mu.Unlock()

	if state != SubmissionFailed {
		return domain.Draft{}, ErrSubmissionNotFailed
	}
	if err := sub.svc.drafts.Save(ctx, draft); err != nil {
		return draft, &PersistenceError{Op: "restore draft", Err: err}
	}
	return draft, nil
}

func (sub *Submission) Response() domain.CheckoutResponse {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return domain.CheckoutResponse{
		State:        string(sub.state),
		Transaction:  sub.tx,
		DocumentType: sub.docType,
		Printing:     sub.printing,
		Celebration:  sub.celebration,
	}
}

func (s *Service) acquireCheckout(terminalID string) bool {
	s.checkoutMu.Lock()
	defer s.checkoutMu.Unlock()
	if _, busy := s.inFlight[terminalID]; busy {
		return false
	}
	s.inFlight[terminalID] = struct{}{}
	return true
}

func (s *Service) releaseCheckout(terminalID string) {
	s.checkoutMu.Lock()
	defer s.checkoutMu.Unlock()
	delete(s.inFlight, terminalID)
}

// Checkout commits the terminal's draft as a transaction.
//
// At most one checkout runs per terminal; a second call while one is in
// flight gets ErrCheckoutInProgress and has no effect. Once the transaction
// is persisted the customer ledger and stock are updated best-effort, the
// draft is reset, and the receipt is printed when requested. The terminal
// stays locked until the print has been triggered.
//
// A persistence failure returns the failed Submission together with a
// *PersistenceError; the draft is left untouched.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*Submission, error) {
	if err := requireCapability(ctx, domain.Actor.CanCheckout); err != nil {
		return nil, err
	}
	terminalID := strings.TrimSpace(req.TerminalID)
	if terminalID == "" {
		return nil, invalid(ErrMissingTerminal)
	}
	if !s.acquireCheckout(terminalID) {
		return nil, ErrCheckoutInProgress
	}

	sub := &Submission{state: SubmissionPending, released: make(chan struct{}), svc: s}
	release := sync.OnceFunc(func() {
		s.releaseCheckout(terminalID)
		close(sub.released)
	})
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()

	// The pipeline must finish even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	draft, err := s.loadDraft(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	sub.preserved = draft

	now := s.now()
	tx, err := Compose(draft, now)
	if err != nil {
		return nil, err
	}
	tx.CreatedBy = actorName(ctx)

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		perr := &PersistenceError{Op: "create transaction", Err: err}
		sub.mu.Lock()
		sub.state = SubmissionFailed
		sub.mu.Unlock()
		log.Printf("[service] checkout failed terminal=%s: %v", terminalID, err)
		return sub, perr
	}

	s.recordVisit(ctx, created.Customer, created.AmountPaise, created.CreatedAt)
	s.deductStock(ctx, created.Items)

	if err := s.saveDraft(ctx, resetDraft(draft)); err != nil {
		log.Printf("[service] WARN: failed to reset draft terminal=%s: %v", terminalID, err)
	}

	s.logAudit(ctx, "checkout", "transaction", created.ID, fmt.Sprintf("kind=%s,status=%s,total=%d,amount=%d", created.Kind, created.Status, created.TotalValuePaise, created.AmountPaise))

	docType := domain.DocumentType(*created)
	sub.mu.Lock()
	sub.state = SubmissionSucceeded
	sub.tx = created
	sub.docType = docType
	sub.celebration = s.observeMilestones(ctx)
	sub.mu.Unlock()

	if !req.ShouldPrint {
		return sub, nil
	}

	if err := s.printer.Present(ctx, *created, docType); err != nil {
		log.Printf("[service] WARN: failed to present receipt tx=%s: %v", created.ID, err)
		return sub, nil
	}
	sub.mu.Lock()
	sub.printing = true
	sub.mu.Unlock()

	handedOff = true
	txID := created.ID
	time.AfterFunc(s.printDelay, func() {
		defer release()
		if err := s.printer.Print(ctx, txID); err != nil {
			log.Printf("[service] WARN: failed to print receipt tx=%s: %v", txID, err)
		}
	})
	return sub, nil
}

func (s *Service) observeMilestones(ctx context.Context) *domain.Celebration {
	if s.milestones == nil {
		return nil
	}
	celebration, err := s.milestones.Observe(ctx)
	if err != nil {
		log.Printf("[service] WARN: milestone check failed: %v", err)
		return nil
	}
	return celebration
}
