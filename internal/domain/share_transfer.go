package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransferPending   = "Pending"
	TransferCompleted = "Completed"
	TransferCancelled = "Cancelled"
)

// ShareTransfer records a peer-to-peer balance movement. Completed transfers
// are immutable; corrections are new rows pointing back via ReversalOf.
type ShareTransfer struct {
	TransferID        uint            `gorm:"column:transfer_id;primaryKey;autoIncrement" json:"transfer_id"`
	FromShareholderID uint            `gorm:"column:from_shareholder_id;not null;index" json:"from_shareholder_id"`
	FromShareholder   *Shareholder    `gorm:"foreignKey:FromShareholderID;references:ShareholderID;constraint:OnDelete:RESTRICT" json:"-"`
	ToShareholderID   uint            `gorm:"column:to_shareholder_id;not null;index" json:"to_shareholder_id"`
	ToShareholder     *Shareholder    `gorm:"foreignKey:ToShareholderID;references:ShareholderID;constraint:OnDelete:RESTRICT" json:"-"`
	ShareAmount       decimal.Decimal `gorm:"column:share_amount;type:decimal(18,2);not null" json:"share_amount"`
	TransferDate      time.Time       `gorm:"column:transfer_date;not null;index" json:"transfer_date"`
	Status            string          `gorm:"column:status;type:varchar(20);not null;default:'Completed'" json:"status"`
	Notes             *string         `gorm:"column:notes;type:varchar(500)" json:"notes"`
	ReversalOf        *uint           `gorm:"column:reversal_of" json:"reversal_of,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (ShareTransfer) TableName() string {
	return "ShareTransfers"
}
