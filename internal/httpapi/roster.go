package httpapi

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"dukaan/backend/internal/domain"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

var errOperatorExists = errors.New("username already exists")

// AccountStore persists operator accounts.
type AccountStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type operator struct {
	username string
	hash     string
	role     string
	active   bool
	created  time.Time
}

// roster caches operator accounts by lower-cased username. It reloads from
// the store when a name is missing, so accounts made by another instance
// can log in without a restart.
type roster struct {
	mu       sync.RWMutex
	accounts AccountStore
	byName   map[string]operator
}

func newRoster(accounts AccountStore) *roster {
	return &roster{accounts: accounts, byName: make(map[string]operator)}
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (r *roster) get(username string) (operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byName[username]
	return op, ok
}

func (r *roster) lookup(ctx context.Context, raw string) (operator, bool) {
	username := normalizeUsername(raw)
	if op, ok := r.get(username); ok {
		return op, true
	}
	r.refresh(ctx)
	return r.get(username)
}

// refresh reloads every account. Passwords still stored in plain text are
// hashed and written back.
func (r *roster) refresh(ctx context.Context) {
	if r.accounts == nil {
		return
	}
	users, err := r.accounts.ListUsers(ctx)
	if err != nil {
		log.Printf("[auth] WARN: failed to load operator accounts: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range users {
		username := normalizeUsername(user.Username)
		if username == "" {
			continue
		}
		hash := user.Password
		if !isBcryptHash(hash) {
			upgraded, err := hashSecret(hash)
			if err != nil {
				continue
			}
			hash = upgraded
			if err := r.accounts.UpdateUserPassword(ctx, username, hash); err != nil {
				log.Printf("[auth] WARN: failed to store hashed password user=%s: %v", username, err)
			}
		}
		r.byName[username] = operator{
			username: username,
			hash:     hash,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}
}

// enrolStaff adds a counter operator who can bill but not purge history.
func (r *roster) enrolStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	username := normalizeUsername(req.Username)
	switch {
	case len(username) < minUsernameLen:
		return domain.StaffUser{}, errors.New("username must be at least 3 characters")
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.StaffUser{}, errors.New("username must not contain spaces")
	case len(strings.TrimSpace(req.Password)) < minPasswordLen:
		return domain.StaffUser{}, errors.New("password must be at least 6 characters")
	}

	if _, exists := r.lookup(ctx, username); exists {
		return domain.StaffUser{}, errOperatorExists
	}

	hash, err := hashSecret(req.Password)
	if err != nil {
		return domain.StaffUser{}, errors.New("failed to hash password")
	}
	op := operator{username: username, hash: hash, role: domain.RoleStaff, active: true, created: time.Now().UTC()}

	if r.accounts != nil {
		err := r.accounts.CreateUser(ctx, domain.UserAccount{
			Username:  op.username,
			Password:  op.hash,
			Role:      op.role,
			Active:    op.active,
			CreatedAt: op.created,
		})
		if err != nil {
			return domain.StaffUser{}, err
		}
	}

	r.mu.Lock()
	r.byName[username] = op
	r.mu.Unlock()
	return op.staffUser(), nil
}

func (r *roster) staff(ctx context.Context) []domain.StaffUser {
	r.refresh(ctx)

	r.mu.RLock()
	result := make([]domain.StaffUser, 0, len(r.byName))
	for _, op := range r.byName {
		if op.role == domain.RoleStaff {
			result = append(result, op.staffUser())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(x, y domain.StaffUser) int {
		return strings.Compare(x.Username, y.Username)
	})
	return result
}

func (op operator) staffUser() domain.StaffUser {
	return domain.StaffUser{Username: op.username, Role: op.role, Active: op.active, CreatedAt: op.created}
}
