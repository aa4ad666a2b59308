package shareholders

import (
	"context"
	"testing"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateShareholder_AdminApprovesImmediately(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}

	sh, err := svc.CreateShareholder(context.Background(), Input{
		FullName: "  Almaz Tesfaye ",
		Email:    "almaz@example.com",
		Phone:    strPtr("+251911000001"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "Almaz Tesfaye", sh.FullName)
	assert.True(t, sh.IsApproved)
	assert.Equal(t, domain.ShareholderActive, sh.Status)
	assert.Equal(t, domain.MemberTypeNew, sh.MemberType)
	assert.True(t, sh.CurrentBalance.IsZero())
}

func TestCreateShareholder_SelfRegisteredPending(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	uid := uuid.New()

	sh, err := svc.CreateShareholder(context.Background(), Input{FullName: "Self", Email: "self@example.com", UserID: &uid}, false)
	require.NoError(t, err)
	assert.False(t, sh.IsApproved)

	found, err := svc.GetByUserID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, sh.ShareholderID, found.ShareholderID)
}

func TestCreateShareholder_Uniqueness(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	_, err := svc.CreateShareholder(ctx, Input{FullName: "A", Email: "a@example.com", Phone: strPtr("0911")}, true)
	require.NoError(t, err)

	_, err = svc.CreateShareholder(ctx, Input{FullName: "B", Email: "a@example.com"}, true)
	require.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.Equal(t, "Email address already exists", apperrors.Message(err))

	_, err = svc.CreateShareholder(ctx, Input{FullName: "B", Email: "b@example.com", Phone: strPtr("0911")}, true)
	require.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.Equal(t, "Phone number already exists", apperrors.Message(err))

	// blank phones are stored as NULL and never collide
	_, err = svc.CreateShareholder(ctx, Input{FullName: "C", Email: "c@example.com", Phone: strPtr(" ")}, true)
	require.NoError(t, err)
	_, err = svc.CreateShareholder(ctx, Input{FullName: "D", Email: "d@example.com"}, true)
	require.NoError(t, err)
}

func TestCreateShareholder_Validation(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	_, err := svc.CreateShareholder(context.Background(), Input{Email: "x@example.com"}, true)
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = svc.CreateShareholder(context.Background(), Input{FullName: "X", Email: "x@example.com", MemberType: "Gold"}, true)
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestUpdateShareholder(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	a := testutil.CreateShareholder(t, db, "Alpha", testutil.WithBalance("300"))
	b := testutil.CreateShareholder(t, db, "Beta")

	_, err := svc.UpdateShareholder(ctx, b.ShareholderID, Input{FullName: "Beta", Email: a.Email})
	require.ErrorIs(t, err, apperrors.ErrDuplicate)

	// keeping its own email is fine
	got, err := svc.UpdateShareholder(ctx, a.ShareholderID, Input{FullName: "Alpha Prime", Email: a.Email, Phone: a.Phone, MemberType: domain.MemberTypePremium})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", got.FullName)
	assert.Equal(t, domain.MemberTypePremium, got.MemberType)
	assert.True(t, got.CurrentBalance.Equal(testutil.D("300")))

	_, err = svc.UpdateShareholder(ctx, 9999, Input{FullName: "X", Email: "x@example.com"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateShareholder_ApprovesLinkedMember(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	uid := uuid.New()
	sh, err := svc.CreateShareholder(context.Background(), Input{FullName: "Pending", Email: "p@example.com", UserID: &uid}, false)
	require.NoError(t, err)

	got, err := svc.UpdateShareholder(context.Background(), sh.ShareholderID, Input{FullName: "Pending", Email: "p@example.com"})
	require.NoError(t, err)
	assert.True(t, got.IsApproved)
}

func TestDeleteShareholder_Guards(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	withShares := testutil.CreateShareholder(t, db, "Owner")
	testutil.CreateCertificate(t, db, withShares.ShareholderID, "1", "100")
	err := svc.DeleteShareholder(ctx, withShares.ShareholderID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, "Cannot delete shareholder with existing shares", apperrors.Message(err))

	withBalance := testutil.CreateShareholder(t, db, "Saver", testutil.WithBalance("0.01"))
	err = svc.DeleteShareholder(ctx, withBalance.ShareholderID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, "Cannot delete shareholder with outstanding balance", apperrors.Message(err))

	empty := testutil.CreateShareholder(t, db, "Leaver")
	require.NoError(t, svc.DeleteShareholder(ctx, empty.ShareholderID))
	_, err = svc.GetShareholder(ctx, empty.ShareholderID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.ErrorIs(t, svc.DeleteShareholder(ctx, empty.ShareholderID), apperrors.ErrNotFound)
}

func TestApproveAndList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	testutil.CreateShareholder(t, db, "Zed")
	testutil.CreateShareholder(t, db, "Amy", testutil.WithStatus(domain.ShareholderInactive))
	pending, err := svc.CreateShareholder(ctx, Input{FullName: "Mo", Email: "mo@example.com"}, false)
	require.NoError(t, err)

	approved, err := svc.ApproveShareholder(ctx, pending.ShareholderID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	_, err = svc.ApproveShareholder(ctx, 4242)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	all, err := svc.ListShareholders(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Amy", all[0].FullName)

	active, err := svc.ActiveShareholders(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
