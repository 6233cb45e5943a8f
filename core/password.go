package core

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"
)

const generatedPasswordLen = 12

// generatePassword returns a random alphanumeric password. SSO-provisioned
// accounts never see it; it only keeps the local credential unguessable.
func generatePassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base58.Encode(b)
	if len(s) > generatedPasswordLen {
		s = s[:generatedPasswordLen]
	}
	return s, nil
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
