package repository

import (
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
)

type CampaignEntity struct {
	ID              int64            `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Name            string           `db:"name"             gorm:"column:name;not null"`
	Description     string           `db:"description"      gorm:"column:description"`
	MessageTemplate string           `db:"message_template" gorm:"column:message_template;not null"`
	Status          string           `db:"status"           gorm:"column:status;not null;default:draft;index"`
	TotalContacts   int64            `db:"total_contacts"   gorm:"column:total_contacts;not null;default:0"`
	SentCount       int64            `db:"sent_count"       gorm:"column:sent_count;not null;default:0"`
	DeliveredCount  int64            `db:"delivered_count"  gorm:"column:delivered_count;not null;default:0"`
	FailedCount     int64            `db:"failed_count"     gorm:"column:failed_count;not null;default:0"`
	ScheduledAt     *time.Time       `db:"scheduled_at"     gorm:"column:scheduled_at"`
	StartedAt       *time.Time       `db:"started_at"       gorm:"column:started_at"`
	CompletedAt     *time.Time       `db:"completed_at"     gorm:"column:completed_at"`
	CreatedAt       time.Time        `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
	Contacts        []*ContactEntity `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	if c == nil {
		return nil
	}
	return &CampaignEntity{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		MessageTemplate: c.MessageTemplate,
		Status:          string(c.Status),
		TotalContacts:   c.TotalContacts,
		SentCount:       c.SentCount,
		DeliveredCount:  c.DeliveredCount,
		FailedCount:     c.FailedCount,
		ScheduledAt:     c.ScheduledAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		MessageTemplate: e.MessageTemplate,
		Status:          model.CampaignStatus(e.Status),
		TotalContacts:   e.TotalContacts,
		SentCount:       e.SentCount,
		DeliveredCount:  e.DeliveredCount,
		FailedCount:     e.FailedCount,
		ScheduledAt:     e.ScheduledAt,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toCampaignModels(entities []*CampaignEntity) []*model.Campaign {
	if entities == nil {
		return nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		models[i] = toCampaignModel(e)
	}
	return models
}
