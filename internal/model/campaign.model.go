package model

import (
	"errors"
	"strings"
	"time"
)

// CampaignStatus is the lifecycle state of a bulk-send campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// IsTerminal reports whether the status accepts no transition except delete.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

type Campaign struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	MessageTemplate string         `json:"message_template"`
	Status          CampaignStatus `json:"status"`
	TotalContacts   int64          `json:"total_contacts"`
	SentCount       int64          `json:"sent_count"`
	DeliveredCount  int64          `json:"delivered_count"`
	FailedCount     int64          `json:"failed_count"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CampaignCreateRequest is the input for creating a campaign.
type CampaignCreateRequest struct {
	Name            string
	Description     string
	MessageTemplate string
	ScheduledAt     *time.Time
}

func (p CampaignCreateRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.MessageTemplate) == "" {
		return errors.New("message_template is required")
	}
	return nil
}

// CampaignFilter controls List queries.
type CampaignFilter struct {
	Statuses []CampaignStatus // IN (...)
	Limit    int              // default 50
	Offset   int
	Desc     bool // order by created_at
}

// BatchResult is what one executor pass over a campaign reports back.
type BatchResult struct {
	Sent      int   `json:"sent"`
	Failed    int   `json:"failed"`
	Remaining int64 `json:"remaining"`
}
