package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/cart"
	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/milestone"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const DefaultPrintDelay = 800 * time.Millisecond

type Options struct {
	Printer    ReceiptPrinter
	PrintDelay time.Duration
	ShopName   string
	// Now is the clock used for transaction and delivery timestamps.
	Now func() time.Time
}

type Service struct {
	repo       store.Repository
	drafts     cache.DraftStore
	milestones *milestone.Detector
	printer    ReceiptPrinter
	printDelay time.Duration
	shopName   string
	now        func() time.Time

	checkoutMu sync.Mutex
	inFlight   map[string]struct{}
}

func New(repo store.Repository, drafts cache.DraftStore, milestones *milestone.Detector, opts Options) *Service {
	if opts.Printer == nil {
		opts.Printer = LogPrinter{}
	}
	if opts.PrintDelay < 0 {
		opts.PrintDelay = DefaultPrintDelay
	}
	if opts.ShopName == "" {
		opts.ShopName = "Dukaan"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:       repo,
		drafts:     drafts,
		milestones: milestones,
		printer:    opts.Printer,
		printDelay: opts.PrintDelay,
		shopName:   opts.ShopName,
		now:        opts.Now,
		inFlight:   make(map[string]struct{}),
	}
}

func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ListItems(ctx)
}

// QuickAddItem creates an inventory item from the billing screen and, when
// asked, drops one unit of it into the terminal's cart.
func (s *Service) QuickAddItem(ctx context.Context, req domain.ItemCreateRequest) (domain.QuickAddResponse, error) {
	if err := requireCapability(ctx, domain.Actor.CanCheckout); err != nil {
		return domain.QuickAddResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.QuickAddResponse{}, invalid(ErrMissingName)
	}
	if strings.TrimSpace(req.Price) == "" {
		return domain.QuickAddResponse{}, invalid(ErrInvalidPrice)
	}
	price, err := ParsePaise(req.Price)
	if err != nil {
		return domain.QuickAddResponse{}, invalid(ErrInvalidPrice)
	}
	if req.Stock < 0 {
		return domain.QuickAddResponse{}, invalid(ErrInvalidStock)
	}
	if req.AddToCart && strings.TrimSpace(req.TerminalID) == "" {
		return domain.QuickAddResponse{}, invalid(ErrMissingTerminal)
	}

	created, err := s.repo.CreateItem(ctx, domain.Item{
		ID:         xid.New("item"),
		Name:       name,
		PricePaise: price,
		Category:   defaultString(req.Category, defaultCategory),
		Stock:      req.Stock,
		Image:      strings.TrimSpace(req.Image),
	})
	if err != nil {
		return domain.QuickAddResponse{}, err
	}
	s.logAudit(ctx, "item_quick_add", "item", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PricePaise, created.Stock))

	resp := domain.QuickAddResponse{Item: *created}
	if !req.AddToCart {
		return resp, nil
	}

	draft, err := s.mutateDraft(ctx, req.TerminalID, func(d *domain.Draft) error {
		d.Cart = cart.Add(d.Cart, *created)
		return nil
	})
	if err != nil {
		return domain.QuickAddResponse{}, err
	}
	resp.Draft = &draft
	return resp, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, invalid(ErrInvalidRange)
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// requireCapability rejects actors lacking the capability. Calls without an
// actor come from inside the process and are allowed.
func requireCapability(ctx context.Context, can func(domain.Actor) bool) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	if !can(actor) {
		return ErrForbidden
	}
	return nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.CanDeleteBulk() {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}
