package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RemoteProfile is the userinfo document. Name and Email are the join keys
// against local accounts.
type RemoteProfile struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// ParseProfile decodes a userinfo body. An absent or garbled body, or one
// without name and email, is an error.
func ParseProfile(body []byte) (RemoteProfile, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return RemoteProfile{}, errors.New("empty userinfo body")
	}
	var p RemoteProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return RemoteProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return RemoteProfile{}, errors.New("userinfo missing name")
	}
	if p.Email == "" {
		return RemoteProfile{}, errors.New("userinfo missing email")
	}
	return p, nil
}
