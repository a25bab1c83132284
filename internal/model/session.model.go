package model

import (
	"time"
)

// SessionStatus is the lifecycle state of a messaging identity.
type SessionStatus string

const (
	SessionStatusUnauthenticated SessionStatus = "unauthenticated"
	SessionStatusCodeRequested   SessionStatus = "code_requested"
	SessionStatusAuthenticated   SessionStatus = "authenticated"
)

// Session is the single authenticated messaging identity for a scope. It is
// never deleted; re-authentication overwrites it in place.
type Session struct {
	ID              int64         `json:"id"`
	Scope           string        `json:"scope"`
	PhoneNumber     string        `json:"phone_number"`
	Status          SessionStatus `json:"status"`
	PhoneCodeHash   string        `json:"-"`
	SessionKey      string        `json:"-"`
	AuthenticatedAt *time.Time    `json:"authenticated_at,omitempty"`
	LastUsedAt      time.Time     `json:"last_used_at"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Status == SessionStatusAuthenticated && s.SessionKey != ""
}
