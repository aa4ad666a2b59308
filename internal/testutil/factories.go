package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"sacco-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// D parses a decimal literal; it panics on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ShareholderOpt tweaks a shareholder before insert.
type ShareholderOpt func(*domain.Shareholder)

func WithBalance(s string) ShareholderOpt {
	return func(sh *domain.Shareholder) { sh.CurrentBalance = D(s) }
}

func WithShares(s string) ShareholderOpt {
	return func(sh *domain.Shareholder) { sh.TotalShares = D(s) }
}

func WithStatus(status string) ShareholderOpt {
	return func(sh *domain.Shareholder) { sh.Status = status }
}

// CreateShareholder inserts an active, approved shareholder with unique contact details.
// Balances set through opts bypass the ledger, like an opening balance import.
func CreateShareholder(t *testing.T, db *gorm.DB, name string, opts ...ShareholderOpt) *domain.Shareholder {
	t.Helper()
	n := seq.Add(1)
	phone := fmt.Sprintf("+2519%08d", n)
	sh := &domain.Shareholder{
		FullName:       name,
		Email:          fmt.Sprintf("member%d@sacco.test", n),
		Phone:          &phone,
		JoinDate:       time.Now(),
		Status:         domain.ShareholderActive,
		MemberType:     domain.MemberTypeActive,
		IsApproved:     true,
		TotalShares:    decimal.Zero,
		CurrentBalance: decimal.Zero,
	}
	for _, opt := range opts {
		opt(sh)
	}
	require.NoError(t, db.Create(sh).Error)
	return sh
}

// CreateCertificate inserts a certificate row without touching the shareholder totals.
func CreateCertificate(t *testing.T, db *gorm.DB, shareholderID uint, shares, value string) *domain.Share {
	t.Helper()
	n := seq.Add(1)
	share := &domain.Share{
		ShareholderID:     shareholderID,
		CertificateNumber: fmt.Sprintf("CERT-1999-%03d", n),
		ShareType:         domain.ShareTypes[0],
		NumberOfShares:    D(shares),
		ShareValue:        D(value),
		PurchaseDate:      time.Now(),
		Status:            domain.ShareActive,
	}
	require.NoError(t, db.Create(share).Error)
	return share
}

// Reload fetches the current row of a shareholder.
func Reload(t *testing.T, db *gorm.DB, id uint) *domain.Shareholder {
	t.Helper()
	var sh domain.Shareholder
	require.NoError(t, db.First(&sh, "shareholder_id = ?", id).Error)
	return &sh
}
