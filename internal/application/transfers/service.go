package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/application/ledger"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/pkg/currency"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const paymentMethodTransfer = "Transfer"

type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Currency string
	Now      func() time.Time
	tracer   trace.Tracer
}

func NewService(db *gorm.DB, l *ledger.Service, currencyCode string) *Service {
	return &Service{DB: db, Ledger: l, Currency: currencyCode, tracer: otel.Tracer("sacco/transfers")}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.tracer == nil {
		s.tracer = otel.Tracer("sacco/transfers")
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.Message(err))
	}
	span.End()
}

// Input describes a new transfer. Status defaults to Completed, which settles
// immediately; Pending only records the request.
type Input struct {
	FromShareholderID uint            `json:"from_shareholder_id"`
	ToShareholderID   uint            `json:"to_shareholder_id"`
	ShareAmount       decimal.Decimal `json:"share_amount"`
	TransferDate      *time.Time      `json:"transfer_date"`
	Status            string          `json:"status"`
	Notes             *string         `json:"notes"`
}

// UpdateInput carries optional edits; nil fields are left unchanged.
type UpdateInput struct {
	FromShareholderID *uint            `json:"from_shareholder_id"`
	ToShareholderID   *uint            `json:"to_shareholder_id"`
	ShareAmount       *decimal.Decimal `json:"share_amount"`
	TransferDate      *time.Time       `json:"transfer_date"`
	Status            *string          `json:"status"`
	Notes             *string          `json:"notes"`
}

// Filter narrows ListTransfers.
type Filter struct {
	ShareholderID uint
	Status        string
}

func validateParties(from, to uint, amount decimal.Decimal) error {
	if from == 0 || to == 0 {
		return apperrors.InvalidRequest("Sender and receiver are required")
	}
	if from == to {
		return apperrors.InvalidRequest("Sender and receiver cannot be the same shareholder")
	}
	if !amount.IsPositive() {
		return apperrors.InvalidRequest("Transfer amount must be greater than zero")
	}
	return nil
}

// loadParties reads both shareholders in ascending id order so concurrent
// settlements over the same pair lock rows in the same sequence.
func loadParties(tx *gorm.DB, fromID, toID uint) (from, to *domain.Shareholder, err error) {
	load := func(id uint, msg string) (*domain.Shareholder, error) {
		return ledger.LoadForUpdate(tx, id, msg)
	}
	var fromErr, toErr error
	if fromID < toID {
		from, fromErr = load(fromID, "Sender shareholder not found")
		to, toErr = load(toID, "Receiver shareholder not found")
	} else {
		to, toErr = load(toID, "Receiver shareholder not found")
		from, fromErr = load(fromID, "Sender shareholder not found")
	}
	if fromErr != nil {
		return nil, nil, fromErr
	}
	if toErr != nil {
		return nil, nil, toErr
	}
	return from, to, nil
}

func (s *Service) insufficient(available, required decimal.Decimal) error {
	return apperrors.InsufficientFunds(fmt.Sprintf("Insufficient balance. Available: %s, Required: %s",
		currency.Format(available, s.Currency), currency.Format(required, s.Currency)))
}

// settle moves t.ShareAmount from sender to receiver and records the
// certificate transactions. t must already be persisted.
func (s *Service) settle(tx *gorm.DB, t *domain.ShareTransfer) error {
	from, to, err := loadParties(tx, t.FromShareholderID, t.ToShareholderID)
	if err != nil {
		return err
	}
	if !from.IsActive() {
		return apperrors.InvalidState("Sender shareholder is not active")
	}
	if !to.IsActive() {
		return apperrors.InvalidState("Receiver shareholder is not active")
	}
	if from.CurrentBalance.LessThan(t.ShareAmount) {
		return s.insufficient(from.CurrentBalance, t.ShareAmount)
	}

	method := paymentMethodTransfer
	outDesc := "Transfer to " + to.FullName
	inDesc := "Transfer from " + from.FullName
	meta := map[string]interface{}{"from_shareholder_id": from.ShareholderID, "to_shareholder_id": to.ShareholderID}
	if _, err := ledger.Post(tx, from, ledger.Posting{
		EntryType:     domain.EntryTransferOut,
		Amount:        t.ShareAmount.Neg(),
		ReferenceType: domain.RefTransfer,
		ReferenceID:   t.TransferID,
		Description:   outDesc,
		Metadata:      meta,
		Certificate:   &ledger.CertificateRecord{Type: domain.TxDebit, Date: t.TransferDate, PaymentMethod: &method, Description: &outDesc, Notes: t.Notes},
	}); err != nil {
		return err
	}
	if _, err := ledger.Post(tx, to, ledger.Posting{
		EntryType:     domain.EntryTransferIn,
		Amount:        t.ShareAmount,
		ReferenceType: domain.RefTransfer,
		ReferenceID:   t.TransferID,
		Description:   inDesc,
		Metadata:      meta,
		Certificate:   &ledger.CertificateRecord{Type: domain.TxCredit, Date: t.TransferDate, PaymentMethod: &method, Description: &inDesc, Notes: t.Notes},
	}); err != nil {
		return err
	}
	return nil
}

// reverse moves a completed transfer's amount back to the sender and marks it Cancelled.
func (s *Service) reverse(tx *gorm.DB, t *domain.ShareTransfer) error {
	from, to, err := loadParties(tx, t.FromShareholderID, t.ToShareholderID)
	if err != nil {
		return err
	}
	if to.CurrentBalance.LessThan(t.ShareAmount) {
		return s.insufficient(to.CurrentBalance, t.ShareAmount)
	}
	date := s.now()
	outDesc := "Reversal of transfer from " + from.FullName
	inDesc := "Reversal of transfer to " + to.FullName
	meta := map[string]interface{}{"reversed_transfer_id": t.TransferID}
	if _, err := ledger.Post(tx, to, ledger.Posting{
		EntryType:     domain.EntryReversal,
		Amount:        t.ShareAmount.Neg(),
		ReferenceType: domain.RefTransfer,
		ReferenceID:   t.TransferID,
		Description:   outDesc,
		Metadata:      meta,
		Certificate:   &ledger.CertificateRecord{Type: domain.TxReversal, Date: date, Description: &outDesc},
	}); err != nil {
		return err
	}
	if _, err := ledger.Post(tx, from, ledger.Posting{
		EntryType:     domain.EntryReversal,
		Amount:        t.ShareAmount,
		ReferenceType: domain.RefTransfer,
		ReferenceID:   t.TransferID,
		Description:   inDesc,
		Metadata:      meta,
		Certificate:   &ledger.CertificateRecord{Type: domain.TxReversal, Date: date, Description: &inDesc},
	}); err != nil {
		return err
	}
	t.Status = domain.TransferCancelled
	if err := tx.Model(t).Update("status", domain.TransferCancelled).Error; err != nil {
		return apperrors.Store("Failed to cancel transfer", err)
	}
	return nil
}

// create persists a transfer row and settles it when Completed.
func (s *Service) create(tx *gorm.DB, in Input, reversalOf *uint) (*domain.ShareTransfer, error) {
	t := &domain.ShareTransfer{
		FromShareholderID: in.FromShareholderID,
		ToShareholderID:   in.ToShareholderID,
		ShareAmount:       in.ShareAmount,
		TransferDate:      s.now(),
		Status:            in.Status,
		Notes:             in.Notes,
		ReversalOf:        reversalOf,
	}
	if in.TransferDate != nil {
		t.TransferDate = *in.TransferDate
	}
	if t.Status == domain.TransferPending {
		if _, _, err := loadParties(tx, t.FromShareholderID, t.ToShareholderID); err != nil {
			return nil, err
		}
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, apperrors.Store("Failed to record transfer", err)
	}
	if t.Status == domain.TransferCompleted {
		if err := s.settle(tx, t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func normalizeStatus(status string) (string, error) {
	switch status {
	case "", domain.TransferCompleted:
		return domain.TransferCompleted, nil
	case domain.TransferPending:
		return domain.TransferPending, nil
	default:
		return "", apperrors.InvalidRequest("Invalid transfer status")
	}
}

// CreateTransfer validates and settles a share transfer atomically: sender
// debited, receiver credited, transfer recorded. Not idempotent.
func (s *Service) CreateTransfer(ctx context.Context, in Input) (*domain.ShareTransfer, error) {
	ctx, span := s.startSpan(ctx, "transfers.create",
		attribute.Int64("transfer.from", int64(in.FromShareholderID)),
		attribute.Int64("transfer.to", int64(in.ToShareholderID)),
		attribute.String("transfer.amount", in.ShareAmount.String()),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if err = validateParties(in.FromShareholderID, in.ToShareholderID, in.ShareAmount); err != nil {
		return nil, err
	}
	if in.Status, err = normalizeStatus(in.Status); err != nil {
		return nil, err
	}

	var out *domain.ShareTransfer
	err = s.Ledger.Settle(ctx, "transfer.create", func(tx *gorm.DB) error {
		t, err := s.create(tx, in, nil)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("transfer_id", out.TransferID).Uint("from", out.FromShareholderID).Uint("to", out.ToShareholderID).
		Str("amount", out.ShareAmount.String()).Str("status", out.Status).Msg("Transfer recorded")
	return out, nil
}

func loadTransfer(tx *gorm.DB, id uint) (*domain.ShareTransfer, error) {
	var t domain.ShareTransfer
	if err := tx.First(&t, "transfer_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Transfer not found")
		}
		return nil, apperrors.Store("Failed to load transfer", err)
	}
	return &t, nil
}

// UpdateTransfer edits a transfer. A Completed transfer is never rewritten:
// changing its amount or parties reverses it and settles a corrected transfer
// that points back via ReversalOf; setting Cancelled reverses it; notes and
// date are edited in place. The returned transfer is the one now in effect.
func (s *Service) UpdateTransfer(ctx context.Context, id uint, in UpdateInput) (*domain.ShareTransfer, error) {
	ctx, span := s.startSpan(ctx, "transfers.update", attribute.Int64("transfer.id", int64(id)))
	var err error
	defer func() { endSpan(span, err) }()

	var out *domain.ShareTransfer
	err = s.Ledger.Settle(ctx, "transfer.update", func(tx *gorm.DB) error {
		t, err := loadTransfer(tx, id)
		if err != nil {
			return err
		}
		if t.Status == domain.TransferCancelled {
			return apperrors.InvalidState("Cancelled transfers cannot be edited")
		}

		next := Input{
			FromShareholderID: t.FromShareholderID,
			ToShareholderID:   t.ToShareholderID,
			ShareAmount:       t.ShareAmount,
			TransferDate:      &t.TransferDate,
			Status:            t.Status,
			Notes:             t.Notes,
		}
		if in.FromShareholderID != nil {
			next.FromShareholderID = *in.FromShareholderID
		}
		if in.ToShareholderID != nil {
			next.ToShareholderID = *in.ToShareholderID
		}
		if in.ShareAmount != nil {
			next.ShareAmount = *in.ShareAmount
		}
		if in.TransferDate != nil {
			next.TransferDate = in.TransferDate
		}
		if in.Notes != nil {
			next.Notes = in.Notes
		}
		if in.Status != nil && *in.Status != "" {
			next.Status = *in.Status
		}
		if err := validateParties(next.FromShareholderID, next.ToShareholderID, next.ShareAmount); err != nil {
			return err
		}
		financial := next.FromShareholderID != t.FromShareholderID ||
			next.ToShareholderID != t.ToShareholderID ||
			!next.ShareAmount.Equal(t.ShareAmount)

		switch {
		case next.Status == domain.TransferCancelled:
			if t.Status == domain.TransferCompleted {
				if err := s.reverse(tx, t); err != nil {
					return err
				}
			}
			if err := tx.Model(t).Updates(map[string]interface{}{"status": domain.TransferCancelled, "notes": next.Notes}).Error; err != nil {
				return apperrors.Store("Failed to update transfer", err)
			}
			t.Status = domain.TransferCancelled
			t.Notes = next.Notes
			out = t

		case t.Status == domain.TransferCompleted && next.Status == domain.TransferPending:
			return apperrors.InvalidState("Completed transfers cannot return to Pending")

		case t.Status == domain.TransferCompleted && financial:
			if err := s.reverse(tx, t); err != nil {
				return err
			}
			corrected, err := s.create(tx, next, &t.TransferID)
			if err != nil {
				return err
			}
			out = corrected

		case t.Status == domain.TransferPending:
			updates := map[string]interface{}{
				"from_shareholder_id": next.FromShareholderID,
				"to_shareholder_id":   next.ToShareholderID,
				"share_amount":        next.ShareAmount,
				"transfer_date":       *next.TransferDate,
				"notes":               next.Notes,
				"status":              next.Status,
			}
			if next.Status != domain.TransferPending && next.Status != domain.TransferCompleted {
				return apperrors.InvalidRequest("Invalid transfer status")
			}
			if err := tx.Model(&domain.ShareTransfer{}).Where("transfer_id = ?", t.TransferID).Updates(updates).Error; err != nil {
				return apperrors.Store("Failed to update transfer", err)
			}
			t.FromShareholderID = next.FromShareholderID
			t.ToShareholderID = next.ToShareholderID
			t.ShareAmount = next.ShareAmount
			t.TransferDate = *next.TransferDate
			t.Notes = next.Notes
			t.Status = next.Status
			if next.Status == domain.TransferCompleted {
				if err := s.settle(tx, t); err != nil {
					return err
				}
			} else if _, _, err := loadParties(tx, t.FromShareholderID, t.ToShareholderID); err != nil {
				return err
			}
			out = t

		default:
			if err := tx.Model(t).Updates(map[string]interface{}{"transfer_date": *next.TransferDate, "notes": next.Notes}).Error; err != nil {
				return apperrors.Store("Failed to update transfer", err)
			}
			t.TransferDate = *next.TransferDate
			t.Notes = next.Notes
			out = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("transfer_id", id).Uint("effective_transfer_id", out.TransferID).Str("status", out.Status).Msg("Transfer updated")
	return out, nil
}

// CancelTransfer reverses a Completed transfer, or withdraws a Pending one.
func (s *Service) CancelTransfer(ctx context.Context, id uint) (*domain.ShareTransfer, error) {
	status := domain.TransferCancelled
	return s.UpdateTransfer(ctx, id, UpdateInput{Status: &status})
}

// DeleteTransfer removes a transfer that never moved money. Completed
// transfers must be cancelled instead.
func (s *Service) DeleteTransfer(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTransfer(tx, id)
		if err != nil {
			return err
		}
		if t.Status == domain.TransferCompleted {
			return apperrors.InvalidState("Completed transfers cannot be deleted; cancel the transfer instead")
		}
		if err := tx.Delete(&domain.ShareTransfer{}, "transfer_id = ?", id).Error; err != nil {
			return apperrors.Store("Failed to delete transfer", err)
		}
		log.Info().Uint("transfer_id", id).Msg("Transfer deleted")
		return nil
	})
}

func (s *Service) GetTransfer(ctx context.Context, id uint) (*domain.ShareTransfer, error) {
	return loadTransfer(s.DB.WithContext(ctx), id)
}

// ListTransfers returns transfers newest first.
func (s *Service) ListTransfers(ctx context.Context, f Filter) ([]domain.ShareTransfer, error) {
	q := s.DB.WithContext(ctx).Order("transfer_date DESC").Order("transfer_id DESC")
	if f.ShareholderID != 0 {
		q = q.Where("from_shareholder_id = ? OR to_shareholder_id = ?", f.ShareholderID, f.ShareholderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []domain.ShareTransfer
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list transfers", err)
	}
	return out, nil
}
