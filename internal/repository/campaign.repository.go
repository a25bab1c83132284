package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// GetStatus is the cheap status probe the executor uses at contact
// boundaries to honor pause requests.
func (r *CampaignRepository) GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error) {
	var status string
	err := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", ErrCampaignNotFound
	}
	return model.CampaignStatus(status), nil
}

func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CampaignEntity{})

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CampaignEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCampaignModels(entities), total, nil
}

// DueScheduled returns scheduled campaigns whose scheduled_at has passed.
func (r *CampaignRepository) DueScheduled(ctx context.Context, before time.Time, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", string(model.CampaignStatusScheduled), before).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

// Running returns campaigns currently in the running state, oldest first.
func (r *CampaignRepository) Running(ctx context.Context, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(model.CampaignStatusRunning)).
		Order("id ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

// Transition conditionally moves a campaign from one of the given states to
// the target state. It returns false when the row was in none of the from
// states, which callers treat as a lost race rather than an error.
func (r *CampaignRepository) Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	}
	switch to {
	case model.CampaignStatusRunning:
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", now)
	case model.CampaignStatusCompleted:
		updates["completed_at"] = now
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementCounters bumps the aggregate counters. It must be called in the
// same transaction as the contact status write it accounts for.
func (r *CampaignRepository) IncrementCounters(ctx context.Context, id int64, sent, delivered, failed int64) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if sent != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", sent)
	}
	if delivered != 0 {
		updates["delivered_count"] = gorm.Expr("delivered_count + ?", delivered)
	}
	if failed != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", failed)
	}

	return r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SyncTotals recomputes total_contacts from the live contact rows. Imports
// call this instead of incrementing, which keeps the count correct under
// concurrent imports.
func (r *CampaignRepository) SyncTotals(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_contacts": gorm.Expr("(SELECT COUNT(*) FROM contacts WHERE campaign_id = ?)", id),
			"updated_at":     time.Now(),
		}).Error
}

// Delete removes the campaign row. Contact cleanup is done by the caller in
// the same transaction via ContactRepository.DeleteByCampaign.
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&CampaignEntity{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}
