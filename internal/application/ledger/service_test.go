package ledger

import (
	"context"
	"testing"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPost_UpdatesTotalsAndAppendsEntry(t *testing.T) {
	db := testutil.NewDB(t)
	sh := testutil.CreateShareholder(t, db, "Abebe Kebede")

	var res *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		loaded, err := LoadForUpdate(tx, sh.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		res, err = Post(tx, loaded, Posting{
			EntryType:         domain.EntryPurchase,
			Amount:            testutil.D("1500.00"),
			SharesDelta:       testutil.D("15"),
			CertificatesDelta: 1,
			ReferenceType:     domain.RefShare,
			ReferenceID:       7,
			Description:       "Certificate CERT-2025-001",
			Metadata:          map[string]interface{}{"certificate_number": "CERT-2025-001"},
		})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Nil(t, res.Transaction)
	assert.True(t, res.Entry.BalanceAfter.Equal(testutil.D("1500")))

	got := testutil.Reload(t, db, sh.ShareholderID)
	assert.True(t, got.CurrentBalance.Equal(testutil.D("1500")))
	assert.True(t, got.TotalShares.Equal(testutil.D("15")))
	assert.Equal(t, 1, got.NumberOfCertificates)
	assert.Equal(t, int64(1), got.Version)
}

func TestPost_StaleVersionConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	sh := testutil.CreateShareholder(t, db, "Stale Reader", testutil.WithBalance("100"))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := Post(tx, sh, Posting{EntryType: domain.EntryAdjustment, Amount: testutil.D("-10")})
		return err
	})
	require.NoError(t, err)

	// sh still carries version 0 on a fresh copy
	stale := *testutil.Reload(t, db, sh.ShareholderID)
	stale.Version = 0
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := Post(tx, &stale, Posting{EntryType: domain.EntryAdjustment, Amount: testutil.D("-10")})
		return err
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	got := testutil.Reload(t, db, sh.ShareholderID)
	assert.True(t, got.CurrentBalance.Equal(testutil.D("90")))
}

func TestPost_CertificateRecordUsesFirstCertificate(t *testing.T) {
	db := testutil.NewDB(t)
	sh := testutil.CreateShareholder(t, db, "Certificate Holder")
	first := testutil.CreateCertificate(t, db, sh.ShareholderID, "10", "100")
	testutil.CreateCertificate(t, db, sh.ShareholderID, "5", "100")

	var res *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		loaded, err := LoadForUpdate(tx, sh.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		desc := "Dividend for January 2025"
		res, err = Post(tx, loaded, Posting{
			EntryType:   domain.EntryDividend,
			Amount:      testutil.D("42.50"),
			Description: desc,
			Certificate: &CertificateRecord{Type: domain.TxDividend, Date: time.Now(), Description: &desc},
		})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, first.ShareID, res.Transaction.ShareID)
	assert.True(t, res.Transaction.Amount.Equal(testutil.D("42.50")))
	require.NotNil(t, res.Entry.ShareID)
	assert.Equal(t, first.ShareID, *res.Entry.ShareID)
}

func TestPost_NoCertificateStillPosts(t *testing.T) {
	db := testutil.NewDB(t)
	sh := testutil.CreateShareholder(t, db, "No Certificates")

	var res *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = Post(tx, sh, Posting{
			EntryType:   domain.EntryTransferIn,
			Amount:      testutil.D("20"),
			Certificate: &CertificateRecord{Type: domain.TxCredit, Date: time.Now()},
		})
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, res.Transaction)
	assert.Nil(t, res.Entry.ShareID)
	assert.True(t, testutil.Reload(t, db, sh.ShareholderID).CurrentBalance.Equal(testutil.D("20")))
}

func TestLoadForUpdate_NotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := LoadForUpdate(db, 999, "Sender shareholder not found")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "Sender shareholder not found", apperrors.Message(err))
}

func TestSettle_RetriesConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 3)

	calls := 0
	err := svc.Settle(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return apperrors.Conflict(nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSettle_GivesUpAfterMaxRetries(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 2)

	calls := 0
	err := svc.Settle(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		return apperrors.Conflict(nil)
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 2, calls)
}

func TestSettle_DoesNotRetryBusinessErrors(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 5)

	calls := 0
	err := svc.Settle(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		return apperrors.InsufficientFunds("Insufficient balance")
	})
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.Equal(t, 1, calls)
}

func TestSettle_RollsBackOnError(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 1)
	sh := testutil.CreateShareholder(t, db, "Rollback", testutil.WithBalance("50"))

	err := svc.Settle(context.Background(), "test", func(tx *gorm.DB) error {
		loaded, err := LoadForUpdate(tx, sh.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		if _, err := Post(tx, loaded, Posting{EntryType: domain.EntryManual, Amount: testutil.D("-50")}); err != nil {
			return err
		}
		return apperrors.InvalidState("abort")
	})
	require.Error(t, err)

	got := testutil.Reload(t, db, sh.ShareholderID)
	assert.True(t, got.CurrentBalance.Equal(testutil.D("50")))
	var count int64
	db.Model(&domain.LedgerEntry{}).Count(&count)
	assert.Zero(t, count)
}

func TestReconcile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 1)
	sh := testutil.CreateShareholder(t, db, "Reconciled")

	for _, amt := range []string{"100", "-30.25", "12.10"} {
		err := svc.Settle(context.Background(), "test", func(tx *gorm.DB) error {
			loaded, err := LoadForUpdate(tx, sh.ShareholderID, "Shareholder not found")
			if err != nil {
				return err
			}
			_, err = Post(tx, loaded, Posting{EntryType: domain.EntryManual, Amount: testutil.D(amt)})
			return err
		})
		require.NoError(t, err)
	}

	rec, err := svc.Reconcile(context.Background(), sh.ShareholderID)
	require.NoError(t, err)
	assert.True(t, rec.InBalance)
	assert.True(t, rec.LedgerBalance.Equal(testutil.D("81.85")))

	drifted := testutil.CreateShareholder(t, db, "Imported", testutil.WithBalance("10"))
	rec, err = svc.Reconcile(context.Background(), drifted.ShareholderID)
	require.NoError(t, err)
	assert.False(t, rec.InBalance)
}
