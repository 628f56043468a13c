package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"dukaan/backend/internal/domain"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveOperator   = errors.New("account is inactive")
)

// AuthManager decides who is at the till. It signs operator sessions, keeps
// the roster of operator accounts and holds the manager PIN that guards
// history purges.
type AuthManager struct {
	sessions sessionSigner
	roster   *roster
	pin      managerPIN
}

func NewAuthManager(ctx context.Context, secret string, tokenTTL time.Duration, pin string, accounts AccountStore) *AuthManager {
	manager := &AuthManager{
		sessions: newSessionSigner(secret, tokenTTL),
		roster:   newRoster(accounts),
		pin:      newManagerPIN(pin),
	}
	manager.roster.refresh(ctx)
	return manager
}

// Login checks the operator's password and opens a session. The response
// carries what the operator may do so the till can grey out the rest.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	op, ok := a.roster.lookup(ctx, req.Username)
	if !ok || !checkSecret(op.hash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !op.active {
		return domain.LoginResponse{}, errInactiveOperator
	}

	actor := domain.Actor{Username: op.username, Role: op.role}
	token, expiresAt, err := a.sessions.issue(actor)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken:  token,
		Role:         actor.Role,
		Capabilities: actor.Capabilities(),
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	return a.sessions.parse(strings.TrimSpace(raw))
}

// ValidateManagerPIN gates history purges. An unset PIN never validates.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	return a.pin.matches(pin)
}

func (a *AuthManager) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	return a.roster.enrolStaff(ctx, req)
}

func (a *AuthManager) ListStaff(ctx context.Context) []domain.StaffUser {
	return a.roster.staff(ctx)
}
