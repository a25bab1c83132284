package repository

import (
	"time"
)

// CrmContactEntity is a row of the organization's contact directory. The
// importer reads it; nothing in this service writes it.
type CrmContactEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	FirstName string    `db:"first_name" gorm:"column:first_name"`
	LastName  string    `db:"last_name"  gorm:"column:last_name"`
	Phone     string    `db:"phone"      gorm:"column:phone"`
	Mobile    string    `db:"mobile"     gorm:"column:mobile"`
	Email     string    `db:"email"      gorm:"column:email"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (CrmContactEntity) TableName() string {
	return "crm_contacts"
}
