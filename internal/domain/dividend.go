package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DividendPending     = "Pending"
	DividendApproved    = "Approved"
	DividendDistributed = "Distributed"
	DividendCancelled   = "Cancelled"
)

// Dividend is a profit distribution for one (year, month) period.
// TotalShares is a snapshot: on distribution it is overwritten with the live
// share sum the credits were computed from.
type Dividend struct {
	DividendID        uint            `gorm:"column:dividend_id;primaryKey;autoIncrement" json:"dividend_id"`
	Year              int             `gorm:"column:year;not null;uniqueIndex:idx_dividend_period" json:"year"`
	Month             int             `gorm:"column:month;not null;uniqueIndex:idx_dividend_period" json:"month"`
	TotalProfit       decimal.Decimal `gorm:"column:total_profit;type:decimal(18,2);not null" json:"total_profit"`
	TotalShares       decimal.Decimal `gorm:"column:total_shares;type:decimal(18,2);not null" json:"total_shares"`
	DividendRate      decimal.Decimal `gorm:"column:dividend_rate;type:decimal(18,4);not null" json:"dividend_rate"`
	TotalDividendPaid decimal.Decimal `gorm:"column:total_dividend_paid;type:decimal(18,2);not null" json:"total_dividend_paid"`
	DistributionDate  time.Time       `gorm:"column:distribution_date;not null" json:"distribution_date"`
	Status            string          `gorm:"column:status;type:varchar(20);not null;default:'Pending'" json:"status"`
	Notes             *string         `gorm:"column:notes;type:varchar(500)" json:"notes"`
	ShareholderID     *uint           `gorm:"column:shareholder_id" json:"shareholder_id,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Dividend) TableName() string {
	return "Dividends"
}

// PeriodLabel renders the period as "January 2025".
func (d *Dividend) PeriodLabel() string {
	return PeriodLabel(d.Year, d.Month)
}

// PeriodLabel renders a (year, month) pair as "January 2025".
func PeriodLabel(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%d-%02d", year, month)
	}
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}
