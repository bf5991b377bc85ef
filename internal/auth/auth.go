// Package auth checks credentials presented to the HTTP surface.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator decides whether a username/password pair may use the ledger.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// BcryptAuthenticator accepts a single user whose password is stored as a
// bcrypt hash.
type BcryptAuthenticator struct {
	username string
	hash     []byte
}

func NewBcryptAuthenticator(username, passwordHash string) *BcryptAuthenticator {
	return &BcryptAuthenticator{
		username: username,
		hash:     []byte(passwordHash),
	}
}

func (a *BcryptAuthenticator) Authenticate(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	return userOK && passErr == nil
}

// HashPassword returns a bcrypt hash suitable for AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
