package httpapi

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"dukaan/backend/internal/domain"
)

const (
	sessionIssuer     = "dukaan"
	defaultSessionTTL = 12 * time.Hour
)

var errInvalidSession = errors.New("invalid or expired session")

// sessionSigner issues HS256 bearer tokens naming the operator and role.
type sessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func newSessionSigner(secret string, ttl time.Duration) sessionSigner {
	if secret == "" {
		secret = "dev-change-me"
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return sessionSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s sessionSigner) issue(actor domain.Actor) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			Issuer:    sessionIssuer,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: actor.Role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// parse accepts only tokens this till signed for a role it knows.
func (s sessionSigner) parse(raw string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(sessionIssuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidSession
	}
	username, err := claims.GetSubject()
	if err != nil || username == "" || !domain.IsKnownRole(claims.Role) {
		return domain.Actor{}, errInvalidSession
	}
	return domain.Actor{Username: username, Role: claims.Role}, nil
}
