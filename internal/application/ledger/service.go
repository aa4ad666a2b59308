package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/infrastructure/database"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the single writer of shareholder running totals. Every change to
// TotalShares, CurrentBalance or NumberOfCertificates goes through Post, which
// also appends a LedgerEntry so the balance can always be re-derived.
type Service struct {
	DB         *gorm.DB
	MaxRetries int
	tracer     trace.Tracer
}

func NewService(db *gorm.DB, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{DB: db, MaxRetries: maxRetries, tracer: otel.Tracer("sacco/ledger")}
}

// CertificateRecord asks Post to also record a ShareTransaction against a
// certificate of the shareholder. It is skipped when the shareholder holds none.
type CertificateRecord struct {
	Type            string
	Date            time.Time
	PaymentMethod   *string
	ReferenceNumber *string
	Description     *string
	Notes           *string
}

// Posting is one signed movement on one shareholder.
type Posting struct {
	EntryType         string
	Amount            decimal.Decimal // balance delta, negative for outflows
	SharesDelta       decimal.Decimal
	CertificatesDelta int
	ShareID           *uint // certificate the movement belongs to, if known
	ReferenceType     string
	ReferenceID       uint
	Description       string
	Metadata          map[string]interface{}
	Certificate       *CertificateRecord
}

// Result describes what Post wrote.
type Result struct {
	Entry       *domain.LedgerEntry
	Transaction *domain.ShareTransaction // nil when no certificate record was written
}

// Settle runs fn in a database transaction and retries the whole unit when a
// posting loses an optimistic lock race. Any other error aborts immediately.
func (s *Service) Settle(ctx context.Context, name string, fn func(tx *gorm.DB) error) error {
	ctx, span := s.tracerOrDefault().Start(ctx, "ledger.settle", trace.WithAttributes(attribute.String("settlement", name)))
	defer span.End()

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.DB.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, apperrors.ErrConflict) {
			log.Warn().Str("settlement", name).Int("attempt", attempts).Msg("Settlement conflict, retrying")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(uint(s.MaxRetries)))

	span.SetAttributes(attribute.Int("settle.attempts", attempts), attribute.Bool("settle.success", err == nil))
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

func (s *Service) tracerOrDefault() trace.Tracer {
	if s.tracer == nil {
		s.tracer = otel.Tracer("sacco/ledger")
	}
	return s.tracer
}

// ForUpdate adds a row lock to the next query where the database supports it.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if database.SupportsRowLocks(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LoadForUpdate reads a shareholder inside tx, taking a row lock where the
// database supports it. Returns NotFound with notFoundMsg when missing.
func LoadForUpdate(tx *gorm.DB, id uint, notFoundMsg string) (*domain.Shareholder, error) {
	var sh domain.Shareholder
	if err := ForUpdate(tx).First(&sh, "shareholder_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(notFoundMsg)
		}
		return nil, apperrors.Store("Failed to load shareholder", err)
	}
	return &sh, nil
}

// Post applies p to sh inside tx. sh must have been loaded in the same
// transaction; its Version is compared on write and the in-memory copy is
// updated on success. A concurrent writer yields apperrors.ErrConflict.
func Post(tx *gorm.DB, sh *domain.Shareholder, p Posting) (*Result, error) {
	newBalance := sh.CurrentBalance.Add(p.Amount)
	newShares := sh.TotalShares.Add(p.SharesDelta)
	newCerts := sh.NumberOfCertificates + p.CertificatesDelta
	if newCerts < 0 {
		newCerts = 0
	}

	res := tx.Model(&domain.Shareholder{}).
		Where("shareholder_id = ? AND version = ?", sh.ShareholderID, sh.Version).
		Updates(map[string]interface{}{
			"current_balance":        newBalance,
			"total_shares":           newShares,
			"number_of_certificates": newCerts,
			"version":                sh.Version + 1,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return nil, apperrors.Store("Failed to update shareholder balance", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict(nil)
	}
	sh.CurrentBalance = newBalance
	sh.TotalShares = newShares
	sh.NumberOfCertificates = newCerts
	sh.Version++

	shareID := p.ShareID
	var stx *domain.ShareTransaction
	if p.Certificate != nil {
		if shareID == nil {
			id, err := firstCertificate(tx, sh.ShareholderID)
			if err != nil {
				return nil, err
			}
			shareID = id
		}
		if shareID != nil {
			stx = &domain.ShareTransaction{
				ShareID:         *shareID,
				TransactionDate: p.Certificate.Date,
				TransactionType: p.Certificate.Type,
				Amount:          p.Amount,
				PaymentMethod:   p.Certificate.PaymentMethod,
				ReferenceNumber: p.Certificate.ReferenceNumber,
				Status:          domain.TxStatusCompleted,
				Description:     p.Certificate.Description,
				Notes:           p.Certificate.Notes,
			}
			if err := tx.Create(stx).Error; err != nil {
				return nil, apperrors.Store("Failed to record certificate transaction", err)
			}
		}
	}

	entry := &domain.LedgerEntry{
		ShareholderID: sh.ShareholderID,
		ShareID:       shareID,
		EntryType:     p.EntryType,
		Amount:        p.Amount,
		SharesDelta:   p.SharesDelta,
		BalanceAfter:  newBalance,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
	}
	if entry.ReferenceType == domain.RefTransaction && entry.ReferenceID == 0 && stx != nil {
		entry.ReferenceID = stx.TransactionID
	}
	if len(p.Metadata) > 0 {
		raw, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, apperrors.InvalidRequest("Invalid ledger metadata")
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, apperrors.Store("Failed to append ledger entry", err)
	}
	return &Result{Entry: entry, Transaction: stx}, nil
}

func firstCertificate(tx *gorm.DB, shareholderID uint) (*uint, error) {
	var share domain.Share
	err := tx.Where("shareholder_id = ?", shareholderID).Order("share_id ASC").Limit(1).Find(&share).Error
	if err != nil {
		return nil, apperrors.Store("Failed to look up certificate", err)
	}
	if share.ShareID == 0 {
		return nil, nil
	}
	return &share.ShareID, nil
}

// Entries returns a shareholder's ledger, oldest first.
func (s *Service) Entries(ctx context.Context, shareholderID uint) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("shareholder_id = ?", shareholderID).
		Order("entry_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store("Failed to load ledger", err)
	}
	return out, nil
}

// EntriesFor returns the entries written for one business record.
func (s *Service) EntriesFor(ctx context.Context, refType string, refID uint) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("entry_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store("Failed to load ledger", err)
	}
	return out, nil
}

// Reconciliation compares the stored running totals with the ledger fold.
type Reconciliation struct {
	ShareholderID uint            `json:"shareholder_id"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	StoredShares  decimal.Decimal `json:"stored_shares"`
	LedgerShares  decimal.Decimal `json:"ledger_shares"`
	InBalance     bool            `json:"in_balance"`
}

// Reconcile folds the ledger of one shareholder and compares it with the
// running totals. Opening balances that predate the ledger show up as drift.
func (s *Service) Reconcile(ctx context.Context, shareholderID uint) (*Reconciliation, error) {
	var sh domain.Shareholder
	if err := s.DB.WithContext(ctx).First(&sh, "shareholder_id = ?", shareholderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Shareholder not found")
		}
		return nil, apperrors.Store("Failed to load shareholder", err)
	}
	entries, err := s.Entries(ctx, shareholderID)
	if err != nil {
		return nil, err
	}
	bal, shares := decimal.Zero, decimal.Zero
	for _, e := range entries {
		bal = bal.Add(e.Amount)
		shares = shares.Add(e.SharesDelta)
	}
	return &Reconciliation{
		ShareholderID: shareholderID,
		StoredBalance: sh.CurrentBalance,
		LedgerBalance: bal,
		StoredShares:  sh.TotalShares,
		LedgerShares:  shares,
		InBalance:     bal.Equal(sh.CurrentBalance) && shares.Equal(sh.TotalShares),
	}, nil
}
