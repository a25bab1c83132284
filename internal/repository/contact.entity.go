package repository

import (
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
)

type ContactEntity struct {
	ID           int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID   int64      `db:"campaign_id"   gorm:"column:campaign_id;not null;uniqueIndex:idx_campaign_phone;index:idx_campaign_status"`
	PhoneNumber  string     `db:"phone_number"  gorm:"column:phone_number;not null;uniqueIndex:idx_campaign_phone"`
	FirstName    string     `db:"first_name"    gorm:"column:first_name"`
	LastName     string     `db:"last_name"     gorm:"column:last_name"`
	Status       string     `db:"status"        gorm:"column:status;not null;default:pending;index:idx_campaign_status"`
	Source       string     `db:"source"        gorm:"column:source;not null"`
	SentAt       *time.Time `db:"sent_at"       gorm:"column:sent_at"`
	ErrorMessage string     `db:"error_message" gorm:"column:error_message"`
	CreatedAt    time.Time  `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (ContactEntity) TableName() string {
	return "contacts"
}

func toContactEntity(c *model.Contact) *ContactEntity {
	if c == nil {
		return nil
	}
	return &ContactEntity{
		ID:           c.ID,
		CampaignID:   c.CampaignID,
		PhoneNumber:  c.PhoneNumber,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Status:       string(c.Status),
		Source:       string(c.Source),
		SentAt:       c.SentAt,
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    c.CreatedAt,
	}
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	return &model.Contact{
		ID:           e.ID,
		CampaignID:   e.CampaignID,
		PhoneNumber:  e.PhoneNumber,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Status:       model.ContactStatus(e.Status),
		Source:       model.ContactSource(e.Source),
		SentAt:       e.SentAt,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
	}
}

func toContactModels(entities []*ContactEntity) []*model.Contact {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contact, len(entities))
	for i, e := range entities {
		models[i] = toContactModel(e)
	}
	return models
}
