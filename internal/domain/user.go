package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a login identity. Members are linked to a Shareholder via Shareholder.UserID.
type User struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname     string    `gorm:"column:fullname;not null" json:"fullname"`
	Email        string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	Role         string    `gorm:"column:role;not null;default:member" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Shareholder{},
		&Share{},
		&ShareTransaction{},
		&ShareTransfer{},
		&Dividend{},
		&LedgerEntry{},
	}
}
