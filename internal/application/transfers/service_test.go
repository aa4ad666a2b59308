package transfers

import (
	"context"
	"sync"
	"testing"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/application/ledger"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"pgregory.net/rapid"
)

func newService(db *gorm.DB) *Service {
	return NewService(db, ledger.NewService(db, 5), "USD")
}

func certificateTxs(t *testing.T, db *gorm.DB, shareID uint) []domain.ShareTransaction {
	t.Helper()
	var out []domain.ShareTransaction
	require.NoError(t, db.Where("share_id = ?", shareID).Order("transaction_id ASC").Find(&out).Error)
	return out
}

func TestCreateTransfer_Scenario(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	a := testutil.CreateShareholder(t, db, "Alem", testutil.WithBalance("1000"))
	b := testutil.CreateShareholder(t, db, "Bekele", testutil.WithBalance("500"))
	certA := testutil.CreateCertificate(t, db, a.ShareholderID, "10", "100")
	certB := testutil.CreateCertificate(t, db, b.ShareholderID, "2", "100")

	tr, err := svc.CreateTransfer(context.Background(), Input{
		FromShareholderID: a.ShareholderID,
		ToShareholderID:   b.ShareholderID,
		ShareAmount:       testutil.D("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, tr.Status)
	assert.NotZero(t, tr.TransferID)

	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("700")))
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.Equal(testutil.D("800")))

	debits := certificateTxs(t, db, certA.ShareID)
	require.Len(t, debits, 1)
	assert.Equal(t, domain.TxDebit, debits[0].TransactionType)
	assert.True(t, debits[0].Amount.Equal(testutil.D("-300")))
	assert.Equal(t, "Transfer to Bekele", *debits[0].Description)
	assert.Equal(t, "Transfer", *debits[0].PaymentMethod)

	credits := certificateTxs(t, db, certB.ShareID)
	require.Len(t, credits, 1)
	assert.Equal(t, domain.TxCredit, credits[0].TransactionType)
	assert.True(t, credits[0].Amount.Equal(testutil.D("300")))
	assert.Equal(t, "Transfer from Alem", *credits[0].Description)

	entries, err := svc.Ledger.EntriesFor(context.Background(), domain.RefTransfer, tr.TransferID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Add(entries[1].Amount).IsZero())
}

func TestCreateTransfer_Validation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("100"))
	b := testutil.CreateShareholder(t, db, "B")
	inactive := testutil.CreateShareholder(t, db, "Dormant", testutil.WithBalance("100"), testutil.WithStatus(domain.ShareholderInactive))

	cases := []struct {
		name string
		in   Input
		kind error
		msg  string
	}{
		{"self transfer", Input{FromShareholderID: a.ShareholderID, ToShareholderID: a.ShareholderID, ShareAmount: testutil.D("1")}, apperrors.ErrInvalidRequest, "Sender and receiver cannot be the same shareholder"},
		{"zero amount", Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: decimal.Zero}, apperrors.ErrInvalidRequest, "Transfer amount must be greater than zero"},
		{"negative amount", Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("-5")}, apperrors.ErrInvalidRequest, "Transfer amount must be greater than zero"},
		{"missing sender", Input{FromShareholderID: 9001, ToShareholderID: 9002, ShareAmount: testutil.D("1")}, apperrors.ErrNotFound, "Sender shareholder not found"},
		{"missing receiver", Input{FromShareholderID: a.ShareholderID, ToShareholderID: 9002, ShareAmount: testutil.D("1")}, apperrors.ErrNotFound, "Receiver shareholder not found"},
		{"inactive sender", Input{FromShareholderID: inactive.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("1")}, apperrors.ErrInvalidState, "Sender shareholder is not active"},
		{"inactive receiver", Input{FromShareholderID: a.ShareholderID, ToShareholderID: inactive.ShareholderID, ShareAmount: testutil.D("1")}, apperrors.ErrInvalidState, "Receiver shareholder is not active"},
		{"insufficient", Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("150")}, apperrors.ErrInsufficientFunds, "Insufficient balance. Available: $100.00, Required: $150.00"},
		{"bad status", Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("1"), Status: "Done"}, apperrors.ErrInvalidRequest, "Invalid transfer status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTransfer(ctx, tc.in)
			require.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.msg, apperrors.Message(err))
		})
	}

	// nothing was applied
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("100")))
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.IsZero())
	var count int64
	db.Model(&domain.ShareTransfer{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateTransfer_WithoutCertificatesStillSettles(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("50"))
	b := testutil.CreateShareholder(t, db, "B")

	_, err := svc.CreateTransfer(context.Background(), Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("50")})
	require.NoError(t, err)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.IsZero())
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.Equal(testutil.D("50")))

	var txCount int64
	db.Model(&domain.ShareTransaction{}).Count(&txCount)
	assert.Zero(t, txCount)
}

func TestCancelTransfer_Reverses(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("400"))
	b := testutil.CreateShareholder(t, db, "B", testutil.WithBalance("10"))

	tr, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("150")})
	require.NoError(t, err)

	cancelled, err := svc.CancelTransfer(ctx, tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCancelled, cancelled.Status)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("400")))
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.Equal(testutil.D("10")))

	entries, err := svc.Ledger.EntriesFor(ctx, domain.RefTransfer, tr.TransferID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	_, err = svc.CancelTransfer(ctx, tr.TransferID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCancelTransfer_ReceiverAlreadySpent(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("100"))
	b := testutil.CreateShareholder(t, db, "B")
	c := testutil.CreateShareholder(t, db, "C")

	tr, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("100")})
	require.NoError(t, err)
	_, err = svc.CreateTransfer(ctx, Input{FromShareholderID: b.ShareholderID, ToShareholderID: c.ShareholderID, ShareAmount: testutil.D("60")})
	require.NoError(t, err)

	_, err = svc.CancelTransfer(ctx, tr.TransferID)
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	got, err := svc.GetTransfer(ctx, tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, got.Status)
}

func TestUpdateTransfer_AmountChangeIssuesCorrection(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("1000"))
	b := testutil.CreateShareholder(t, db, "B")

	tr, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("300")})
	require.NoError(t, err)

	amount := testutil.D("120")
	corrected, err := svc.UpdateTransfer(ctx, tr.TransferID, UpdateInput{ShareAmount: &amount})
	require.NoError(t, err)
	assert.NotEqual(t, tr.TransferID, corrected.TransferID)
	require.NotNil(t, corrected.ReversalOf)
	assert.Equal(t, tr.TransferID, *corrected.ReversalOf)
	assert.Equal(t, domain.TransferCompleted, corrected.Status)

	original, err := svc.GetTransfer(ctx, tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCancelled, original.Status)
	assert.True(t, original.ShareAmount.Equal(testutil.D("300")))

	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("880")))
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.Equal(testutil.D("120")))
}

func TestUpdateTransfer_NotesInPlace(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("10"))
	b := testutil.CreateShareholder(t, db, "B")

	tr, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("10")})
	require.NoError(t, err)

	notes := "family gift"
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := svc.UpdateTransfer(ctx, tr.TransferID, UpdateInput{Notes: &notes, TransferDate: &date})
	require.NoError(t, err)
	assert.Equal(t, tr.TransferID, got.TransferID)
	assert.Equal(t, "family gift", *got.Notes)

	var count int64
	db.Model(&domain.LedgerEntry{}).Count(&count)
	assert.Equal(t, int64(2), count)

	pending := domain.TransferPending
	_, err = svc.UpdateTransfer(ctx, tr.TransferID, UpdateInput{Status: &pending})
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestPendingTransferLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("80"))
	b := testutil.CreateShareholder(t, db, "B")

	tr, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("500"), Status: domain.TransferPending})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferPending, tr.Status)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("80")))

	completed := domain.TransferCompleted
	_, err = svc.UpdateTransfer(ctx, tr.TransferID, UpdateInput{Status: &completed})
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	amount := testutil.D("30")
	settled, err := svc.UpdateTransfer(ctx, tr.TransferID, UpdateInput{Status: &completed, ShareAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, settled.Status)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("50")))

	err = svc.DeleteTransfer(ctx, tr.TransferID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	draft, err := svc.CreateTransfer(ctx, Input{FromShareholderID: a.ShareholderID, ToShareholderID: b.ShareholderID, ShareAmount: testutil.D("1"), Status: domain.TransferPending})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransfer(ctx, draft.TransferID))
	_, err = svc.GetTransfer(ctx, draft.TransferID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListTransfers(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ctx := context.Background()
	a := testutil.CreateShareholder(t, db, "A", testutil.WithBalance("100"))
	b := testutil.CreateShareholder(t, db, "B", testutil.WithBalance("100"))
	c := testutil.CreateShareholder(t, db, "C", testutil.WithBalance("100"))

	for _, p := range [][2]uint{{a.ShareholderID, b.ShareholderID}, {b.ShareholderID, c.ShareholderID}, {c.ShareholderID, b.ShareholderID}} {
		_, err := svc.CreateTransfer(ctx, Input{FromShareholderID: p[0], ToShareholderID: p[1], ShareAmount: testutil.D("5")})
		require.NoError(t, err)
	}

	all, err := svc.ListTransfers(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := svc.ListTransfers(ctx, Filter{ShareholderID: a.ShareholderID, Status: domain.TransferCompleted})
	require.NoError(t, err)
	assert.Len(t, forA, 1)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	sender := testutil.CreateShareholder(t, db, "Sender", testutil.WithBalance("100"))
	receiver := testutil.CreateShareholder(t, db, "Receiver")

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateTransfer(context.Background(), Input{
				FromShareholderID: sender.ShareholderID,
				ToShareholderID:   receiver.ShareholderID,
				ShareAmount:       testutil.D("20"),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case apperrors.KindOf(err) == apperrors.KindInsufficientFunds:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, insufficient)
	assert.True(t, testutil.Reload(t, db, sender.ShareholderID).CurrentBalance.IsZero())
	assert.True(t, testutil.Reload(t, db, receiver.ShareholderID).CurrentBalance.Equal(testutil.D("100")))
}

func TestTransfersConserveBalance_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db := testutil.NewDB(t)
		svc := newService(db)
		ctx := context.Background()

		n := rapid.IntRange(2, 4).Draw(rt, "members")
		ids := make([]uint, n)
		total := decimal.Zero
		for i := range ids {
			bal := decimal.New(rapid.Int64Range(0, 100000).Draw(rt, "balance"), -2)
			sh := testutil.CreateShareholder(t, db, "Member", testutil.WithBalance(bal.String()))
			ids[i] = sh.ShareholderID
			total = total.Add(bal)
		}

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			from := rapid.SampledFrom(ids).Draw(rt, "from")
			to := rapid.SampledFrom(ids).Draw(rt, "to")
			amount := decimal.New(rapid.Int64Range(-100, 60000).Draw(rt, "amount"), -2)
			_, err := svc.CreateTransfer(ctx, Input{FromShareholderID: from, ToShareholderID: to, ShareAmount: amount})
			if err != nil {
				kind := apperrors.KindOf(err)
				if kind != apperrors.KindInvalidRequest && kind != apperrors.KindInsufficientFunds {
					rt.Fatalf("unexpected error: %v", err)
				}
			}
		}

		sum := decimal.Zero
		for _, id := range ids {
			sh := testutil.Reload(t, db, id)
			if sh.CurrentBalance.IsNegative() {
				rt.Fatalf("shareholder %d overdrawn: %s", id, sh.CurrentBalance)
			}
			sum = sum.Add(sh.CurrentBalance)
		}
		if !sum.Equal(total) {
			rt.Fatalf("balance not conserved: before %s after %s", total, sum)
		}
	})
}
