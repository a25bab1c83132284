package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"gorm.io/gorm/clause"
)

var (
	// ErrContactNotFound is returned when a contact does not exist.
	ErrContactNotFound = errors.New("contact not found")
)

type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{
		db,
	}
}

// Insert adds one contact unless (campaign_id, phone_number) already exists.
// The duplicate case is reported via the returned bool, not an error, so the
// importer can count it as skipped.
func (r *ContactRepository) Insert(ctx context.Context, c *model.Contact) (bool, error) {
	entity := toContactEntity(c)

	res := r.Write(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "phone_number"}},
		DoNothing: true,
	}).Create(entity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPending returns up to limit pending contacts in insertion order.
// Insertion order is what makes batch resumption deterministic.
func (r *ContactRepository) ListPending(ctx context.Context, campaignID int64, limit int) ([]*model.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, string(model.ContactStatusPending)).
		Order("id ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toContactModels(entities), nil
}

// Claim conditionally moves a contact from pending to in_progress. Two
// concurrent batches can never both claim the same row.
func (r *ContactRepository) Claim(ctx context.Context, id int64) (bool, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ? AND status = ?", id, string(model.ContactStatusPending)).
		Update("status", string(model.ContactStatusInProgress))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release undoes a claim after an engine fault, before the send happened.
func (r *ContactRepository) Release(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ? AND status = ?", id, string(model.ContactStatusInProgress)).
		Update("status", string(model.ContactStatusPending)).Error
}

// Finalize moves a claimed contact to its terminal status.
func (r *ContactRepository) Finalize(ctx context.Context, id int64, status model.ContactStatus, errMsg string, sentAt *time.Time) error {
	updates := map[string]interface{}{
		"status":        string(status),
		"error_message": errMsg,
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ? AND status = ?", id, string(model.ContactStatusInProgress)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (r *ContactRepository) CountPending(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(model.ContactStatusPending)).
		Count(&count).Error
	return count, err
}

func (r *ContactRepository) CountByStatus(ctx context.Context, campaignID int64) (map[model.ContactStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.Read(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.ContactStatus]int64, len(rows))
	for _, r := range rows {
		counts[model.ContactStatus(r.Status)] = r.Count
	}
	return counts, nil
}

func (r *ContactRepository) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ContactEntity{}).
		Where("campaign_id = ?", f.CampaignID)

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ContactEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toContactModels(entities), total, nil
}

// DeleteByCampaign removes all contacts of a campaign, used by the cascade
// delete path.
func (r *ContactRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	return r.Write(ctx).WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Delete(&ContactEntity{}).Error
}
