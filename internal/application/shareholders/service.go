package shareholders

import (
	"context"
	"errors"
	"strings"
	"time"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Input carries the editable profile fields. Running totals are never accepted here.
type Input struct {
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone"`
	JoinDate    *time.Time `json:"join_date"`
	Status      string     `json:"status"`
	MemberType  string     `json:"member_type"`
	Address     *string    `json:"address"`
	City        *string    `json:"city"`
	IDNumber    *string    `json:"id_number"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *string    `json:"gender"`
	UserID      *uuid.UUID `json:"-"`
}

func (in *Input) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else {
			in.Phone = &p
		}
	}
}

func (in *Input) validate() error {
	if in.FullName == "" || in.Email == "" {
		return apperrors.InvalidRequest("Full name and email are required")
	}
	if in.Status != "" && in.Status != domain.ShareholderActive && in.Status != domain.ShareholderInactive {
		return apperrors.InvalidRequest("Invalid shareholder status")
	}
	switch in.MemberType {
	case "", domain.MemberTypeNew, domain.MemberTypeActive, domain.MemberTypePremium:
	default:
		return apperrors.InvalidRequest("Invalid member type")
	}
	return nil
}

// checkUnique fails with Duplicate when email or phone is taken by another shareholder.
func checkUnique(tx *gorm.DB, email string, phone *string, excludeID uint) error {
	var count int64
	q := tx.Model(&domain.Shareholder{}).Where("email = ?", email)
	if excludeID != 0 {
		q = q.Where("shareholder_id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Store("Failed to check email", err)
	}
	if count > 0 {
		return apperrors.Duplicate("Email address already exists")
	}
	if phone == nil {
		return nil
	}
	q = tx.Model(&domain.Shareholder{}).Where("phone = ?", *phone)
	if excludeID != 0 {
		q = q.Where("shareholder_id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Store("Failed to check phone", err)
	}
	if count > 0 {
		return apperrors.Duplicate("Phone number already exists")
	}
	return nil
}

// CreateShareholder registers a member. Admin-created members are approved
// immediately; self-registered ones wait for ApproveShareholder.
func (s *Service) CreateShareholder(ctx context.Context, in Input, createdByAdmin bool) (*domain.Shareholder, error) {
	return s.create(s.DB.WithContext(ctx), in, createdByAdmin)
}

// CreateShareholderTx is CreateShareholder inside an existing transaction.
func (s *Service) CreateShareholderTx(tx *gorm.DB, in Input, createdByAdmin bool) (*domain.Shareholder, error) {
	return s.create(tx, in, createdByAdmin)
}

func (s *Service) create(tx *gorm.DB, in Input, createdByAdmin bool) (*domain.Shareholder, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkUnique(tx, in.Email, in.Phone, 0); err != nil {
		return nil, err
	}

	sh := &domain.Shareholder{
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		JoinDate:    time.Now(),
		Status:      domain.ShareholderActive,
		MemberType:  domain.MemberTypeNew,
		Address:     in.Address,
		City:        in.City,
		IDNumber:    in.IDNumber,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		IsApproved:  createdByAdmin,
		UserID:      in.UserID,
	}
	if in.JoinDate != nil {
		sh.JoinDate = *in.JoinDate
	}
	if in.Status != "" {
		sh.Status = in.Status
	}
	if in.MemberType != "" {
		sh.MemberType = in.MemberType
	}
	if err := tx.Create(sh).Error; err != nil {
		return nil, apperrors.Store("Failed to create shareholder", err)
	}
	log.Info().Uint("shareholder_id", sh.ShareholderID).Bool("approved", sh.IsApproved).Msg("Shareholder created")
	return sh, nil
}

// UpdateShareholder edits profile fields. An admin edit of a user-linked,
// unapproved record approves it.
func (s *Service) UpdateShareholder(ctx context.Context, id uint, in Input) (*domain.Shareholder, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	var sh domain.Shareholder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sh, "shareholder_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Shareholder not found")
			}
			return apperrors.Store("Failed to load shareholder", err)
		}
		if err := checkUnique(tx, in.Email, in.Phone, id); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"full_name":     in.FullName,
			"email":         in.Email,
			"phone":         in.Phone,
			"address":       in.Address,
			"city":          in.City,
			"id_number":     in.IDNumber,
			"date_of_birth": in.DateOfBirth,
			"gender":        in.Gender,
		}
		if in.JoinDate != nil {
			updates["join_date"] = *in.JoinDate
		}
		if in.Status != "" {
			updates["status"] = in.Status
		}
		if in.MemberType != "" {
			updates["member_type"] = in.MemberType
		}
		if sh.UserID != nil && !sh.IsApproved {
			updates["is_approved"] = true
		}
		if err := tx.Model(&sh).Updates(updates).Error; err != nil {
			return apperrors.Store("Failed to update shareholder", err)
		}
		return tx.First(&sh, "shareholder_id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// DeleteShareholder removes a member that owns no certificates and holds no balance.
func (s *Service) DeleteShareholder(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sh domain.Shareholder
		if err := tx.First(&sh, "shareholder_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Shareholder not found")
			}
			return apperrors.Store("Failed to load shareholder", err)
		}
		var shares int64
		if err := tx.Model(&domain.Share{}).Where("shareholder_id = ?", id).Count(&shares).Error; err != nil {
			return apperrors.Store("Failed to check shares", err)
		}
		if shares > 0 {
			return apperrors.InvalidState("Cannot delete shareholder with existing shares")
		}
		if sh.CurrentBalance.IsPositive() {
			return apperrors.InvalidState("Cannot delete shareholder with outstanding balance")
		}
		var transfers int64
		if err := tx.Model(&domain.ShareTransfer{}).
			Where("from_shareholder_id = ? OR to_shareholder_id = ?", id, id).
			Count(&transfers).Error; err != nil {
			return apperrors.Store("Failed to check transfers", err)
		}
		if transfers > 0 {
			return apperrors.InvalidState("Cannot delete shareholder with transfer history")
		}
		if err := tx.Delete(&domain.Shareholder{}, "shareholder_id = ?", id).Error; err != nil {
			return apperrors.Store("Failed to delete shareholder", err)
		}
		log.Info().Uint("shareholder_id", id).Msg("Shareholder deleted")
		return nil
	})
}

// ApproveShareholder lets a self-registered member log in.
func (s *Service) ApproveShareholder(ctx context.Context, id uint) (*domain.Shareholder, error) {
	res := s.DB.WithContext(ctx).Model(&domain.Shareholder{}).
		Where("shareholder_id = ?", id).
		Update("is_approved", true)
	if res.Error != nil {
		return nil, apperrors.Store("Failed to approve shareholder", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("Shareholder not found")
	}
	return s.GetShareholder(ctx, id)
}

func (s *Service) GetShareholder(ctx context.Context, id uint) (*domain.Shareholder, error) {
	var sh domain.Shareholder
	if err := s.DB.WithContext(ctx).First(&sh, "shareholder_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Shareholder not found")
		}
		return nil, apperrors.Store("Failed to load shareholder", err)
	}
	return &sh, nil
}

// GetByUserID returns the shareholder linked to a login.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Shareholder, error) {
	var sh domain.Shareholder
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&sh).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Shareholder profile not found")
		}
		return nil, apperrors.Store("Failed to load shareholder", err)
	}
	return &sh, nil
}

// ListShareholders returns all shareholders, optionally filtered by status, by name.
func (s *Service) ListShareholders(ctx context.Context, status string) ([]domain.Shareholder, error) {
	q := s.DB.WithContext(ctx).Order("full_name ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Shareholder
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list shareholders", err)
	}
	return out, nil
}

// ActiveShareholders returns active members ordered by name.
func (s *Service) ActiveShareholders(ctx context.Context) ([]domain.Shareholder, error) {
	return s.ListShareholders(ctx, domain.ShareholderActive)
}

// Shares lists the certificates of one shareholder, newest first.
func (s *Service) Shares(ctx context.Context, id uint) ([]domain.Share, error) {
	var out []domain.Share
	if err := s.DB.WithContext(ctx).Where("shareholder_id = ?", id).Order("purchase_date DESC").Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list shares", err)
	}
	return out, nil
}
