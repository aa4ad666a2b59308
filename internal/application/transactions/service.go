package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/application/ledger"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/pkg/currency"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ManualTypes are the certificate transaction types an admin may record by hand.
var ManualTypes = []string{domain.TxCredit, domain.TxDebit, domain.TxDeposit, domain.TxWithdrawal}

type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Input records a manual movement. Amount is a magnitude; the sign follows
// the transaction type (Debit and Withdrawal are stored negative).
type Input struct {
	ShareID         uint            `json:"share_id"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate *time.Time      `json:"transaction_date"`
	PaymentMethod   *string         `json:"payment_method"`
	ReferenceNumber *string         `json:"reference_number"`
	Description     *string         `json:"description"`
	Notes           *string         `json:"notes"`
}

// UpdateInput edits descriptive fields. Amount and type are accepted only to
// reject changes to them.
type UpdateInput struct {
	TransactionType *string          `json:"transaction_type"`
	Amount          *decimal.Decimal `json:"amount"`
	TransactionDate *time.Time       `json:"transaction_date"`
	PaymentMethod   *string          `json:"payment_method"`
	ReferenceNumber *string          `json:"reference_number"`
	Description     *string          `json:"description"`
	Notes           *string          `json:"notes"`
}

// Filter narrows ListTransactions.
type Filter struct {
	ShareID         uint
	ShareholderID   uint
	TransactionType string
}

// FormattedTx is a certificate transaction with its certificate and owner resolved.
type FormattedTx struct {
	domain.ShareTransaction
	CertificateNumber string `json:"certificate_number"`
	ShareholderID     uint   `json:"shareholder_id"`
	ShareholderName   string `json:"shareholder_name"`
}

// Summary aggregates certificate transactions.
type Summary struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	Count        int             `json:"count"`
}

func isManualType(t string) bool {
	for _, m := range ManualTypes {
		if m == t {
			return true
		}
	}
	return false
}

func signed(txType string, amount decimal.Decimal) decimal.Decimal {
	if domain.IsOutflow(txType) {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

func loadShare(tx *gorm.DB, id uint) (*domain.Share, error) {
	var share domain.Share
	if err := tx.First(&share, "share_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Share not found")
		}
		return nil, apperrors.Store("Failed to load share", err)
	}
	return &share, nil
}

func loadTransaction(tx *gorm.DB, id uint) (*domain.ShareTransaction, error) {
	var t domain.ShareTransaction
	if err := tx.First(&t, "transaction_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Transaction not found")
		}
		return nil, apperrors.Store("Failed to load transaction", err)
	}
	return &t, nil
}

func (s *Service) insufficient(available, required decimal.Decimal) error {
	return apperrors.InsufficientFunds(fmt.Sprintf("Insufficient balance. Available: %s, Required: %s",
		currency.Format(available, s.Currency), currency.Format(required, s.Currency)))
}

// CreateTransaction records a manual certificate transaction and posts it to
// the certificate owner's balance.
func (s *Service) CreateTransaction(ctx context.Context, in Input) (*domain.ShareTransaction, error) {
	in.TransactionType = strings.TrimSpace(in.TransactionType)
	if !isManualType(in.TransactionType) {
		return nil, apperrors.InvalidRequest("Transaction type must be one of " + strings.Join(ManualTypes, ", "))
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.InvalidRequest("Amount must be greater than zero")
	}
	amount := signed(in.TransactionType, in.Amount)

	var out *domain.ShareTransaction
	err := s.Ledger.Settle(ctx, "transaction.create", func(tx *gorm.DB) error {
		share, err := loadShare(tx, in.ShareID)
		if err != nil {
			return err
		}
		owner, err := ledger.LoadForUpdate(tx, share.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		if amount.IsNegative() && owner.CurrentBalance.LessThan(amount.Neg()) {
			return s.insufficient(owner.CurrentBalance, amount.Neg())
		}
		date := s.now()
		if in.TransactionDate != nil {
			date = *in.TransactionDate
		}
		desc := fmt.Sprintf("%s on %s", in.TransactionType, share.CertificateNumber)
		if in.Description != nil && *in.Description != "" {
			desc = *in.Description
		}
		res, err := ledger.Post(tx, owner, ledger.Posting{
			EntryType:     domain.EntryManual,
			Amount:        amount,
			ShareID:       &share.ShareID,
			ReferenceType: domain.RefTransaction,
			Description:   desc,
			Certificate: &ledger.CertificateRecord{
				Type:            in.TransactionType,
				Date:            date,
				PaymentMethod:   in.PaymentMethod,
				ReferenceNumber: in.ReferenceNumber,
				Description:     &desc,
				Notes:           in.Notes,
			},
		})
		if err != nil {
			return err
		}
		out = res.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("transaction_id", out.TransactionID).Str("type", out.TransactionType).Str("amount", out.Amount.String()).Msg("Transaction recorded")
	return out, nil
}

// UpdateTransaction edits descriptive fields of a transaction. Amount and
// type are fixed once posted; delete and re-record instead.
func (s *Service) UpdateTransaction(ctx context.Context, id uint, in UpdateInput) (*domain.ShareTransaction, error) {
	var out *domain.ShareTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTransaction(tx, id)
		if err != nil {
			return err
		}
		if in.TransactionType != nil && *in.TransactionType != t.TransactionType {
			return apperrors.InvalidState("Transaction type cannot be changed once posted")
		}
		if in.Amount != nil && !signed(t.TransactionType, *in.Amount).Equal(t.Amount) {
			return apperrors.InvalidState("Transaction amount cannot be changed once posted")
		}
		updates := map[string]interface{}{}
		if in.TransactionDate != nil {
			updates["transaction_date"] = *in.TransactionDate
		}
		if in.PaymentMethod != nil {
			updates["payment_method"] = in.PaymentMethod
		}
		if in.ReferenceNumber != nil {
			updates["reference_number"] = in.ReferenceNumber
		}
		if in.Description != nil {
			updates["description"] = in.Description
		}
		if in.Notes != nil {
			updates["notes"] = in.Notes
		}
		if len(updates) > 0 {
			if err := tx.Model(&domain.ShareTransaction{}).Where("transaction_id = ?", id).Updates(updates).Error; err != nil {
				return apperrors.Store("Failed to update transaction", err)
			}
		}
		out, err = loadTransaction(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransaction removes a manual transaction and posts the reversing
// entry. Rows written by transfers and dividends are part of those records
// and cannot be deleted here.
func (s *Service) DeleteTransaction(ctx context.Context, id uint) error {
	return s.Ledger.Settle(ctx, "transaction.delete", func(tx *gorm.DB) error {
		t, err := loadTransaction(tx, id)
		if err != nil {
			return err
		}
		var manual int64
		if err := tx.Model(&domain.LedgerEntry{}).
			Where("reference_type = ? AND reference_id = ? AND entry_type = ?", domain.RefTransaction, id, domain.EntryManual).
			Count(&manual).Error; err != nil {
			return apperrors.Store("Failed to check transaction origin", err)
		}
		if manual == 0 {
			return apperrors.InvalidState("Transactions created by transfers or dividends cannot be deleted")
		}
		share, err := loadShare(tx, t.ShareID)
		if err != nil {
			return err
		}
		owner, err := ledger.LoadForUpdate(tx, share.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		if t.Amount.IsPositive() && owner.CurrentBalance.LessThan(t.Amount) {
			return s.insufficient(owner.CurrentBalance, t.Amount)
		}
		if err := tx.Delete(&domain.ShareTransaction{}, "transaction_id = ?", id).Error; err != nil {
			return apperrors.Store("Failed to delete transaction", err)
		}
		_, err = ledger.Post(tx, owner, ledger.Posting{
			EntryType:     domain.EntryReversal,
			Amount:        t.Amount.Neg(),
			ShareID:       &share.ShareID,
			ReferenceType: domain.RefTransaction,
			ReferenceID:   id,
			Description:   fmt.Sprintf("Reversal of %s on %s", t.TransactionType, share.CertificateNumber),
		})
		if err == nil {
			log.Info().Uint("transaction_id", id).Msg("Transaction deleted")
		}
		return err
	})
}

func (s *Service) GetTransaction(ctx context.Context, id uint) (*domain.ShareTransaction, error) {
	return loadTransaction(s.DB.WithContext(ctx), id)
}

// ListTransactions returns certificate transactions newest first, with the
// certificate number and owner resolved.
func (s *Service) ListTransactions(ctx context.Context, f Filter) ([]FormattedTx, error) {
	db := s.DB.WithContext(ctx)
	q := db.Order("transaction_date DESC").Order("transaction_id DESC")
	if f.ShareID != 0 {
		q = q.Where("share_id = ?", f.ShareID)
	}
	if f.ShareholderID != 0 {
		q = q.Where("share_id IN (?)", db.Model(&domain.Share{}).Select("share_id").Where("shareholder_id = ?", f.ShareholderID))
	}
	if f.TransactionType != "" {
		q = q.Where("transaction_type = ?", f.TransactionType)
	}
	var txs []domain.ShareTransaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, apperrors.Store("Failed to list transactions", err)
	}
	if len(txs) == 0 {
		return []FormattedTx{}, nil
	}

	shareIDs := map[uint]bool{}
	for _, t := range txs {
		shareIDs[t.ShareID] = true
	}
	ids := make([]uint, 0, len(shareIDs))
	for id := range shareIDs {
		ids = append(ids, id)
	}
	var shares []domain.Share
	if err := db.Where("share_id IN ?", ids).Find(&shares).Error; err != nil {
		return nil, apperrors.Store("Failed to load shares", err)
	}
	shareMap := map[uint]domain.Share{}
	ownerIDs := make([]uint, 0, len(shares))
	for _, sh := range shares {
		shareMap[sh.ShareID] = sh
		ownerIDs = append(ownerIDs, sh.ShareholderID)
	}
	var owners []domain.Shareholder
	if err := db.Select("shareholder_id, full_name").Where("shareholder_id IN ?", ownerIDs).Find(&owners).Error; err != nil {
		return nil, apperrors.Store("Failed to load shareholders", err)
	}
	nameMap := map[uint]string{}
	for _, o := range owners {
		nameMap[o.ShareholderID] = o.FullName
	}

	out := make([]FormattedTx, len(txs))
	for i, t := range txs {
		ft := FormattedTx{ShareTransaction: t}
		if sh, ok := shareMap[t.ShareID]; ok {
			ft.CertificateNumber = sh.CertificateNumber
			ft.ShareholderID = sh.ShareholderID
			ft.ShareholderName = nameMap[sh.ShareholderID]
		}
		out[i] = ft
	}
	return out, nil
}

// Summarize totals credits and debits across all certificate transactions.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	var amounts []decimal.Decimal
	if err := s.DB.WithContext(ctx).Model(&domain.ShareTransaction{}).Pluck("amount", &amounts).Error; err != nil {
		return nil, apperrors.Store("Failed to summarize transactions", err)
	}
	sum := &Summary{TotalCredits: decimal.Zero, TotalDebits: decimal.Zero, NetBalance: decimal.Zero, Count: len(amounts)}
	for _, a := range amounts {
		if a.IsPositive() {
			sum.TotalCredits = sum.TotalCredits.Add(a)
		} else {
			sum.TotalDebits = sum.TotalDebits.Add(a.Abs())
		}
		sum.NetBalance = sum.NetBalance.Add(a)
	}
	return sum, nil
}
