package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ShareholderActive   = "Active"
	ShareholderInactive = "Inactive"

	MemberTypeNew     = "New"
	MemberTypeActive  = "Active"
	MemberTypePremium = "Premium"
)

// Shareholder is a cooperative member. TotalShares, CurrentBalance and
// NumberOfCertificates are running totals owned by the ledger posting service;
// Version is bumped on every posting.
type Shareholder struct {
	ShareholderID        uint            `gorm:"column:shareholder_id;primaryKey;autoIncrement" json:"shareholder_id"`
	FullName             string          `gorm:"column:full_name;type:varchar(100);not null" json:"full_name"`
	Email                string          `gorm:"column:email;type:varchar(100);not null;uniqueIndex" json:"email"`
	Phone                *string         `gorm:"column:phone;type:varchar(20);uniqueIndex" json:"phone"`
	JoinDate             time.Time       `gorm:"column:join_date;not null" json:"join_date"`
	TotalShares          decimal.Decimal `gorm:"column:total_shares;type:decimal(18,2);not null;default:0" json:"total_shares"`
	CurrentBalance       decimal.Decimal `gorm:"column:current_balance;type:decimal(18,2);not null;default:0" json:"current_balance"`
	NumberOfCertificates int             `gorm:"column:number_of_certificates;not null;default:0" json:"number_of_certificates"`
	Status               string          `gorm:"column:status;type:varchar(20);not null;default:'Active'" json:"status"`
	MemberType           string          `gorm:"column:member_type;type:varchar(20);not null;default:'New'" json:"member_type"`
	Address              *string         `gorm:"column:address;type:varchar(200)" json:"address"`
	City                 *string         `gorm:"column:city;type:varchar(50)" json:"city"`
	IDNumber             *string         `gorm:"column:id_number;type:varchar(20)" json:"id_number"`
	DateOfBirth          *time.Time      `gorm:"column:date_of_birth" json:"date_of_birth"`
	Gender               *string         `gorm:"column:gender;type:varchar(20)" json:"gender"`
	IsApproved           bool            `gorm:"column:is_approved;not null;default:false" json:"is_approved"`
	UserID               *uuid.UUID      `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Version              int64           `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Shareholder) TableName() string {
	return "Shareholders"
}

// IsActive reports whether the shareholder may take part in settlements.
func (s *Shareholder) IsActive() bool {
	return s.Status == ShareholderActive
}
