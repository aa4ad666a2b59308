package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Ledger entry types.
const (
	EntryPurchase    = "Purchase"
	EntryAdjustment  = "Adjustment"
	EntryTransferOut = "TransferOut"
	EntryTransferIn  = "TransferIn"
	EntryDividend    = "Dividend"
	EntryManual      = "Manual"
	EntryReversal    = "Reversal"
)

// Ledger entry reference types.
const (
	RefShare       = "share"
	RefTransfer    = "transfer"
	RefDividend    = "dividend"
	RefTransaction = "transaction"
)

// LedgerEntry is an append-only signed movement keyed by shareholder. The
// certificate link is optional.
type LedgerEntry struct {
	EntryID       uint            `gorm:"column:entry_id;primaryKey;autoIncrement" json:"entry_id"`
	ShareholderID uint            `gorm:"column:shareholder_id;not null;index" json:"shareholder_id"`
	ShareID       *uint           `gorm:"column:share_id" json:"share_id"`
	EntryType     string          `gorm:"column:entry_type;type:varchar(20);not null" json:"entry_type"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	SharesDelta   decimal.Decimal `gorm:"column:shares_delta;type:decimal(18,2);not null;default:0" json:"shares_delta"`
	BalanceAfter  decimal.Decimal `gorm:"column:balance_after;type:decimal(18,2);not null" json:"balance_after"`
	ReferenceType string          `gorm:"column:reference_type;type:varchar(20);index:idx_ledger_reference" json:"reference_type"`
	ReferenceID   uint            `gorm:"column:reference_id;index:idx_ledger_reference" json:"reference_id"`
	Description   string          `gorm:"column:description;type:varchar(200)" json:"description"`
	Metadata      datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "LedgerEntries"
}
