package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ShareActive    = "Active"
	ShareMatured   = "Matured"
	ShareCancelled = "Cancelled"
)

// ShareTypes are the certificate classes offered by the cooperative.
var ShareTypes = []string{
	"Ordinary Shares",
	"Preference Shares",
	"Cumulative Shares",
	"Non-Cumulative Shares",
	"Redeemable Shares",
}

// IsValidShareType returns true if t is one of ShareTypes.
func IsValidShareType(t string) bool {
	for _, s := range ShareTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Share is a numbered share certificate owned by one shareholder.
type Share struct {
	ShareID           uint            `gorm:"column:share_id;primaryKey;autoIncrement" json:"share_id"`
	ShareholderID     uint            `gorm:"column:shareholder_id;not null;index" json:"shareholder_id"`
	Shareholder       *Shareholder    `gorm:"foreignKey:ShareholderID;references:ShareholderID;constraint:OnDelete:RESTRICT" json:"-"`
	CertificateNumber string          `gorm:"column:certificate_number;type:varchar(50);not null;uniqueIndex" json:"certificate_number"`
	ShareType         string          `gorm:"column:share_type;type:varchar(50);not null" json:"share_type"`
	NumberOfShares    decimal.Decimal `gorm:"column:number_of_shares;type:decimal(18,2);not null" json:"number_of_shares"`
	ShareValue        decimal.Decimal `gorm:"column:share_value;type:decimal(18,2);not null" json:"share_value"`
	PurchaseDate      time.Time       `gorm:"column:purchase_date;not null" json:"purchase_date"`
	MaturityDate      *time.Time      `gorm:"column:maturity_date" json:"maturity_date"`
	Status            string          `gorm:"column:status;type:varchar(20);not null;default:'Active'" json:"status"`
	Notes             *string         `gorm:"column:notes;type:varchar(200)" json:"notes"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Share) TableName() string {
	return "Shares"
}

// TotalValue is the purchase value of the certificate.
func (s *Share) TotalValue() decimal.Decimal {
	return s.NumberOfShares.Mul(s.ShareValue)
}
