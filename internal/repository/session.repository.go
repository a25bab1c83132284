package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSessionNotFound is returned when no session exists for a scope.
	ErrSessionNotFound = errors.New("session not found")
)

type SessionRepository struct {
	*pg.DB
}

func NewSessionRepository(db *pg.DB) *SessionRepository {
	return &SessionRepository{
		db,
	}
}

func (r *SessionRepository) Get(ctx context.Context, scope string) (*model.Session, error) {
	var entity SessionEntity
	err := r.Read(ctx).WithContext(ctx).Where("scope = ?", scope).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return toSessionModel(&entity), nil
}

// Save upserts the session for its scope; there is at most one row per scope.
func (r *SessionRepository) Save(ctx context.Context, s *model.Session) (*model.Session, error) {
	entity := toSessionEntity(s)
	entity.LastUsedAt = time.Now()

	err := r.Write(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phone_number", "status", "phone_code_hash", "session_key",
			"authenticated_at", "last_used_at",
		}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, s.Scope)
}

// Touch bumps last_used_at, recorded on every send batch.
func (r *SessionRepository) Touch(ctx context.Context, scope string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&SessionEntity{}).
		Where("scope = ?", scope).
		Update("last_used_at", time.Now()).Error
}
