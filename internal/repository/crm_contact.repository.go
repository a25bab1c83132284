package repository

import (
	"context"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/pg"
)

type CrmContactRepository struct {
	*pg.DB
}

func NewCrmContactRepository(db *pg.DB) *CrmContactRepository {
	return &CrmContactRepository{
		db,
	}
}

// ListWithPhone returns every directory contact that has a phone number.
// Mobile wins over the landline field when both are set, matching how the
// directory is maintained.
func (r *CrmContactRepository) ListWithPhone(ctx context.Context) ([]model.RawContact, error) {
	var entities []*CrmContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("(mobile IS NOT NULL AND mobile <> '') OR (phone IS NOT NULL AND phone <> '')").
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	raws := make([]model.RawContact, 0, len(entities))
	for _, e := range entities {
		phone := e.Mobile
		if phone == "" {
			phone = e.Phone
		}
		raws = append(raws, model.RawContact{
			PhoneRaw:  phone,
			FirstName: e.FirstName,
			LastName:  e.LastName,
		})
	}
	return raws, nil
}
