package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Certificate transaction types. Debit and Withdrawal are stored negative.
const (
	TxCredit     = "Credit"
	TxDebit      = "Debit"
	TxDeposit    = "Deposit"
	TxWithdrawal = "Withdrawal"
	TxDividend   = "Dividend"
	TxTransfer   = "Transfer"
	TxPurchase   = "Purchase"
	TxReversal   = "Reversal"

	TxStatusCompleted = "Completed"
)

// IsOutflow reports whether a transaction type reduces the balance.
func IsOutflow(txType string) bool {
	return txType == TxDebit || txType == TxWithdrawal
}

// ShareTransaction is a signed monetary movement recorded against a certificate.
type ShareTransaction struct {
	TransactionID   uint            `gorm:"column:transaction_id;primaryKey;autoIncrement" json:"transaction_id"`
	ShareID         uint            `gorm:"column:share_id;not null;index" json:"share_id"`
	Share           *Share          `gorm:"foreignKey:ShareID;references:ShareID;constraint:OnDelete:RESTRICT" json:"-"`
	TransactionDate time.Time       `gorm:"column:transaction_date;not null;index" json:"transaction_date"`
	TransactionType string          `gorm:"column:transaction_type;type:varchar(20);not null" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	PaymentMethod   *string         `gorm:"column:payment_method;type:varchar(50)" json:"payment_method"`
	ReferenceNumber *string         `gorm:"column:reference_number;type:varchar(100);index" json:"reference_number"`
	Status          string          `gorm:"column:status;type:varchar(20);not null;default:'Completed'" json:"status"`
	Description     *string         `gorm:"column:description;type:varchar(200)" json:"description"`
	Notes           *string         `gorm:"column:notes;type:varchar(500)" json:"notes"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (ShareTransaction) TableName() string {
	return "ShareTransactions"
}
