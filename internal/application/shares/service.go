package shares

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/application/ledger"
	"sacco-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type Input struct {
	ShareholderID     uint            `json:"shareholder_id"`
	CertificateNumber string          `json:"certificate_number"`
	ShareType         string          `json:"share_type"`
	NumberOfShares    decimal.Decimal `json:"number_of_shares"`
	ShareValue        decimal.Decimal `json:"share_value"`
	PurchaseDate      *time.Time      `json:"purchase_date"`
	MaturityDate      *time.Time      `json:"maturity_date"`
	Status            string          `json:"status"`
	Notes             *string         `json:"notes"`
}

func (in *Input) validate() error {
	if !in.NumberOfShares.IsPositive() {
		return apperrors.InvalidRequest("Number of shares must be greater than zero")
	}
	if !in.ShareValue.IsPositive() {
		return apperrors.InvalidRequest("Share value must be greater than zero")
	}
	if in.ShareType == "" {
		in.ShareType = domain.ShareTypes[0]
	}
	if !domain.IsValidShareType(in.ShareType) {
		return apperrors.InvalidRequest("Invalid share type")
	}
	switch in.Status {
	case "":
		in.Status = domain.ShareActive
	case domain.ShareActive, domain.ShareMatured, domain.ShareCancelled:
	default:
		return apperrors.InvalidRequest("Invalid share status")
	}
	return nil
}

func certificatePrefix(year int) string {
	return fmt.Sprintf("CERT-%d-", year)
}

// GenerateNextCertificateNumber returns CERT-<year>-<seq> with a 3-digit
// zero-padded sequence one past the highest number issued this year.
func (s *Service) GenerateNextCertificateNumber(ctx context.Context) (string, error) {
	return nextCertificateNumber(s.DB.WithContext(ctx), s.now().Year())
}

func nextCertificateNumber(tx *gorm.DB, year int) (string, error) {
	prefix := certificatePrefix(year)
	var numbers []string
	if err := tx.Model(&domain.Share{}).
		Where("certificate_number LIKE ?", prefix+"%").
		Pluck("certificate_number", &numbers).Error; err != nil {
		return "", apperrors.Store("Failed to read certificate numbers", err)
	}
	highest := 0
	for _, n := range numbers {
		seq, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err == nil && seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1), nil
}

func certificateExists(tx *gorm.DB, number string, excludeID uint) (bool, error) {
	var count int64
	q := tx.Model(&domain.Share{}).Where("certificate_number = ?", number)
	if excludeID != 0 {
		q = q.Where("share_id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Store("Failed to check certificate number", err)
	}
	return count > 0, nil
}

// CreateShare issues a certificate and posts its purchase value to the owner.
func (s *Service) CreateShare(ctx context.Context, in Input) (*domain.Share, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.CertificateNumber = strings.TrimSpace(in.CertificateNumber)

	var share *domain.Share
	err := s.Ledger.Settle(ctx, "share.create", func(tx *gorm.DB) error {
		owner, err := ledger.LoadForUpdate(tx, in.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		number := in.CertificateNumber
		if number == "" {
			if number, err = nextCertificateNumber(tx, s.now().Year()); err != nil {
				return err
			}
		} else {
			exists, err := certificateExists(tx, number, 0)
			if err != nil {
				return err
			}
			if exists {
				return apperrors.Duplicate("Certificate number already exists")
			}
		}

		share = &domain.Share{
			ShareholderID:     owner.ShareholderID,
			CertificateNumber: number,
			ShareType:         in.ShareType,
			NumberOfShares:    in.NumberOfShares,
			ShareValue:        in.ShareValue,
			PurchaseDate:      s.now(),
			MaturityDate:      in.MaturityDate,
			Status:            in.Status,
			Notes:             in.Notes,
		}
		if in.PurchaseDate != nil {
			share.PurchaseDate = *in.PurchaseDate
		}
		if err := tx.Create(share).Error; err != nil {
			return apperrors.Store("Failed to create share", err)
		}

		_, err = ledger.Post(tx, owner, ledger.Posting{
			EntryType:         domain.EntryPurchase,
			Amount:            share.TotalValue(),
			SharesDelta:       share.NumberOfShares,
			CertificatesDelta: 1,
			ShareID:           &share.ShareID,
			ReferenceType:     domain.RefShare,
			ReferenceID:       share.ShareID,
			Description:       "Share purchase " + share.CertificateNumber,
			Metadata: map[string]interface{}{
				"certificate_number": share.CertificateNumber,
				"share_type":         share.ShareType,
				"share_value":        share.ShareValue.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("share_id", share.ShareID).Str("certificate", share.CertificateNumber).Msg("Share created")
	return share, nil
}

// UpdateShare edits a certificate; changes to its size or unit value are posted
// to the owner as an adjustment.
func (s *Service) UpdateShare(ctx context.Context, id uint, in Input) (*domain.Share, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.CertificateNumber = strings.TrimSpace(in.CertificateNumber)

	var share domain.Share
	err := s.Ledger.Settle(ctx, "share.update", func(tx *gorm.DB) error {
		if err := tx.First(&share, "share_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Share not found")
			}
			return apperrors.Store("Failed to load share", err)
		}
		if in.CertificateNumber != "" && in.CertificateNumber != share.CertificateNumber {
			exists, err := certificateExists(tx, in.CertificateNumber, id)
			if err != nil {
				return err
			}
			if exists {
				return apperrors.Duplicate("Certificate number already exists")
			}
			share.CertificateNumber = in.CertificateNumber
		}

		oldShares, oldValue := share.NumberOfShares, share.TotalValue()
		share.ShareType = in.ShareType
		share.NumberOfShares = in.NumberOfShares
		share.ShareValue = in.ShareValue
		if in.PurchaseDate != nil {
			share.PurchaseDate = *in.PurchaseDate
		}
		share.MaturityDate = in.MaturityDate
		share.Status = in.Status
		share.Notes = in.Notes
		if err := tx.Save(&share).Error; err != nil {
			return apperrors.Store("Failed to update share", err)
		}

		sharesDelta := share.NumberOfShares.Sub(oldShares)
		valueDelta := share.TotalValue().Sub(oldValue)
		if sharesDelta.IsZero() && valueDelta.IsZero() {
			return nil
		}
		owner, err := ledger.LoadForUpdate(tx, share.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		_, err = ledger.Post(tx, owner, ledger.Posting{
			EntryType:     domain.EntryAdjustment,
			Amount:        valueDelta,
			SharesDelta:   sharesDelta,
			ShareID:       &share.ShareID,
			ReferenceType: domain.RefShare,
			ReferenceID:   share.ShareID,
			Description:   "Certificate adjustment " + share.CertificateNumber,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// DeleteShare removes a certificate with no transactions and reverses its purchase.
func (s *Service) DeleteShare(ctx context.Context, id uint) error {
	return s.Ledger.Settle(ctx, "share.delete", func(tx *gorm.DB) error {
		var share domain.Share
		if err := tx.First(&share, "share_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Share not found")
			}
			return apperrors.Store("Failed to load share", err)
		}
		var txCount int64
		if err := tx.Model(&domain.ShareTransaction{}).Where("share_id = ?", id).Count(&txCount).Error; err != nil {
			return apperrors.Store("Failed to check share transactions", err)
		}
		if txCount > 0 {
			return apperrors.InvalidState("Cannot delete share certificate with existing transactions")
		}
		owner, err := ledger.LoadForUpdate(tx, share.ShareholderID, "Shareholder not found")
		if err != nil {
			return err
		}
		value := share.TotalValue()
		if owner.CurrentBalance.LessThan(value) {
			return apperrors.InvalidState("Cannot delete share certificate whose value has already been moved")
		}
		if err := tx.Model(&domain.LedgerEntry{}).Where("share_id = ?", id).Update("share_id", nil).Error; err != nil {
			return apperrors.Store("Failed to detach ledger entries", err)
		}
		if err := tx.Delete(&domain.Share{}, "share_id = ?", id).Error; err != nil {
			return apperrors.Store("Failed to delete share", err)
		}
		_, err = ledger.Post(tx, owner, ledger.Posting{
			EntryType:         domain.EntryReversal,
			Amount:            value.Neg(),
			SharesDelta:       share.NumberOfShares.Neg(),
			CertificatesDelta: -1,
			ReferenceType:     domain.RefShare,
			ReferenceID:       share.ShareID,
			Description:       "Certificate deleted " + share.CertificateNumber,
		})
		if err == nil {
			log.Info().Uint("share_id", id).Str("certificate", share.CertificateNumber).Msg("Share deleted")
		}
		return err
	})
}

func (s *Service) GetShare(ctx context.Context, id uint) (*domain.Share, error) {
	var share domain.Share
	if err := s.DB.WithContext(ctx).First(&share, "share_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Share not found")
		}
		return nil, apperrors.Store("Failed to load share", err)
	}
	return &share, nil
}

// ListShares returns certificates, optionally for one shareholder, newest first.
func (s *Service) ListShares(ctx context.Context, shareholderID uint) ([]domain.Share, error) {
	q := s.DB.WithContext(ctx).Order("purchase_date DESC").Order("share_id DESC")
	if shareholderID != 0 {
		q = q.Where("shareholder_id = ?", shareholderID)
	}
	var out []domain.Share
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list shares", err)
	}
	return out, nil
}

// Transactions lists the certificate transactions of one share.
func (s *Service) Transactions(ctx context.Context, id uint) ([]domain.ShareTransaction, error) {
	var out []domain.ShareTransaction
	if err := s.DB.WithContext(ctx).Where("share_id = ?", id).Order("transaction_date DESC").Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list share transactions", err)
	}
	return out, nil
}
