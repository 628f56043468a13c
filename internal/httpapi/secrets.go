package httpapi

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// managerPIN keeps only the bcrypt hash of the configured PIN.
type managerPIN struct {
	hash string
}

func newManagerPIN(raw string) managerPIN {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return managerPIN{}
	}
	hash, err := hashSecret(raw)
	if err != nil {
		return managerPIN{}
	}
	return managerPIN{hash: hash}
}

func (p managerPIN) matches(input string) bool {
	return checkSecret(p.hash, strings.TrimSpace(input))
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// checkSecret never matches a blank input or a stored value that is not a
// bcrypt hash.
func checkSecret(hash string, input string) bool {
	if strings.TrimSpace(input) == "" || !isBcryptHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func isBcryptHash(value string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
