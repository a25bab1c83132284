package repository

import (
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
)

type SessionEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Scope           string     `db:"scope"            gorm:"column:scope;not null;uniqueIndex"`
	PhoneNumber     string     `db:"phone_number"     gorm:"column:phone_number;not null"`
	Status          string     `db:"status"           gorm:"column:status;not null;default:unauthenticated"`
	PhoneCodeHash   string     `db:"phone_code_hash"  gorm:"column:phone_code_hash"`
	SessionKey      string     `db:"session_key"      gorm:"column:session_key"`
	AuthenticatedAt *time.Time `db:"authenticated_at" gorm:"column:authenticated_at"`
	LastUsedAt      time.Time  `db:"last_used_at"     gorm:"column:last_used_at"`
	CreatedAt       time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (SessionEntity) TableName() string {
	return "sessions"
}

func toSessionEntity(s *model.Session) *SessionEntity {
	if s == nil {
		return nil
	}
	return &SessionEntity{
		ID:              s.ID,
		Scope:           s.Scope,
		PhoneNumber:     s.PhoneNumber,
		Status:          string(s.Status),
		PhoneCodeHash:   s.PhoneCodeHash,
		SessionKey:      s.SessionKey,
		AuthenticatedAt: s.AuthenticatedAt,
		LastUsedAt:      s.LastUsedAt,
		CreatedAt:       s.CreatedAt,
	}
}

func toSessionModel(e *SessionEntity) *model.Session {
	if e == nil {
		return nil
	}
	return &model.Session{
		ID:              e.ID,
		Scope:           e.Scope,
		PhoneNumber:     e.PhoneNumber,
		Status:          model.SessionStatus(e.Status),
		PhoneCodeHash:   e.PhoneCodeHash,
		SessionKey:      e.SessionKey,
		AuthenticatedAt: e.AuthenticatedAt,
		LastUsedAt:      e.LastUsedAt,
		CreatedAt:       e.CreatedAt,
	}
}
