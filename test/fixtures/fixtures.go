package fixtures

import (
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
)

var (
	TestSessionAuthenticated = model.Session{
		ID:          1,
		Scope:       "default",
		PhoneNumber: "14155550100",
		Status:      model.SessionStatusAuthenticated,
		SessionKey:  "test-session-key-1",
	}

	TestSessionPending = model.Session{
		ID:            2,
		Scope:         "pending",
		PhoneNumber:   "14155550101",
		Status:        model.SessionStatusCodeRequested,
		PhoneCodeHash: "test-code-hash-2",
	}
)

func NewTestCampaign(name, template string) *model.Campaign {
	return &model.Campaign{
		Name:            name,
		MessageTemplate: template,
		Status:          model.CampaignStatusDraft,
		CreatedAt:       time.Now(),
	}
}

func NewTestCampaignCreateRequest(name, template string, scheduledAt *time.Time) model.CampaignCreateRequest {
	return model.CampaignCreateRequest{
		Name:            name,
		MessageTemplate: template,
		ScheduledAt:     scheduledAt,
	}
}

func NewTestContact(campaignID int64, phone, firstName string) *model.Contact {
	return &model.Contact{
		CampaignID:  campaignID,
		PhoneNumber: phone,
		FirstName:   firstName,
		Status:      model.ContactStatusPending,
		Source:      model.ContactSourceManual,
		CreatedAt:   time.Now(),
	}
}

func NewTestRawContact(phone, firstName, lastName string) model.RawContact {
	return model.RawContact{
		PhoneRaw:  phone,
		FirstName: firstName,
		LastName:  lastName,
	}
}

var (
	ValidPhoneNumbers = []string{
		"+1 (415) 555-0100",
		"+14155550101",
		"44 20 7946 0958",
		"+49-30-123456789",
		"8613012345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"not-a-phone",
		"+",
		"555-0100",
	}

	ValidMessageTemplates = []string{
		"Hello {first_name}!",
		"Hi {first_name} {last_name}, we have news for {phone}",
		"Plain message with no placeholders",
	}
)
