package model

import (
	"errors"
	"strings"
	"time"
)

// ContactStatus is the lifecycle state of one recipient inside a campaign.
// A contact is created pending and moved exactly once to a terminal state;
// in_progress is a short-lived claim marker held while a batch processes it.
type ContactStatus string

const (
	ContactStatusPending    ContactStatus = "pending"
	ContactStatusInProgress ContactStatus = "in_progress"
	ContactStatusSent       ContactStatus = "sent"
	ContactStatusDelivered  ContactStatus = "delivered"
	ContactStatusFailed     ContactStatus = "failed"
	ContactStatusNotFound   ContactStatus = "not_found"
)

// ContactSource tells which importer produced the row.
type ContactSource string

const (
	ContactSourceManual ContactSource = "manual"
	ContactSourceCSV    ContactSource = "csv"
	ContactSourceCRM    ContactSource = "crm"
)

type Contact struct {
	ID           int64         `json:"id"`
	CampaignID   int64         `json:"campaign_id"`
	PhoneNumber  string        `json:"phone_number"` // normalized, digits only
	FirstName    string        `json:"first_name,omitempty"`
	LastName     string        `json:"last_name,omitempty"`
	Status       ContactStatus `json:"status"`
	Source       ContactSource `json:"source"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// RawContact is one unvalidated entry handed to the importer.
type RawContact struct {
	PhoneRaw  string
	FirstName string
	LastName  string
}

// ContactFilter controls List queries.
type ContactFilter struct {
	CampaignID int64
	Statuses   []ContactStatus
	Limit      int // default 50
	Offset     int
}

// ImportResult summarizes one importer call. Row-level problems increment
// Skipped instead of failing the call.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

var ErrInvalidPhoneFormat = errors.New("invalid phone number format")

const minPhoneDigits = 10

// NormalizePhone strips all formatting from a raw phone number and keeps
// digits only. Numbers with fewer than ten digits are rejected.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if len(normalized) < minPhoneDigits {
		return "", ErrInvalidPhoneFormat
	}
	return normalized, nil
}
