package auth

import (
	"context"
	"errors"
	"strings"

	"sacco-backend/internal/apperrors"
	"sacco-backend/internal/application/shareholders"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/pkg/constants"
	"sacco-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionUserShape is the object stored in session and returned by /me.
type SessionUserShape struct {
	UserID        string `json:"user_id"`
	Fullname      string `json:"fullname"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	ShareholderID *uint  `json:"shareholder_id"`
}

// Account is an authenticated user plus the shareholder it is linked to (members only).
type Account struct {
	User          domain.User
	ShareholderID *uint
}

// UserFinder abstracts user lookup by email+password (for production GORM or test doubles).
type UserFinder interface {
	FindByEmailAndPassword(ctx context.Context, email, password string) (*Account, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByEmailAndPassword(ctx context.Context, email, password string) (*Account, error) {
	return LoginUser(g.DB.WithContext(ctx), LoginInput{Email: email, Password: password})
}

// LoginUser finds user by email and verifies password. Members must be linked
// to an approved shareholder.
func LoginUser(db *gorm.DB, input LoginInput) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	acc := &Account{User: u}
	if u.Role == constants.Admin {
		return acc, nil
	}
	var sh domain.Shareholder
	if err := db.Where("user_id = ?", u.UserID).First(&sh).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingApproval
		}
		return nil, err
	}
	if !sh.IsApproved {
		return nil, ErrPendingApproval
	}
	id := sh.ShareholderID
	acc.ShareholderID = &id
	return acc, nil
}

// Service owns self-registration.
type Service struct {
	DB           *gorm.DB
	Shareholders *shareholders.Service
}

// RegisterInput is the public sign-up form.
type RegisterInput struct {
	Fullname string  `json:"fullname"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
}

// Register creates a member login and its pending shareholder record in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullname := strings.Join(strings.Fields(in.Fullname), " ")
	if email == "" || !validation.IsValidEmail(email) {
		return nil, apperrors.InvalidRequest("Invalid email format")
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, apperrors.InvalidRequest("Invalid password format")
	}
	if !validation.IsValidFullname(fullname) {
		return nil, apperrors.InvalidRequest("Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" && !validation.IsValidPhone(strings.TrimSpace(*in.Phone)) {
		return nil, apperrors.InvalidRequest("Invalid phone number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, apperrors.Store("Failed to register", err)
	}

	var acc Account
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return apperrors.Store("Failed to check email", err)
		}
		if count > 0 {
			return apperrors.Duplicate("Email already registered")
		}
		u := domain.User{
			Fullname:     fullname,
			Email:        email,
			PasswordHash: string(hash),
			Role:         constants.Member,
		}
		if err := tx.Create(&u).Error; err != nil {
			return apperrors.Store("Failed to create user", err)
		}
		sh, err := s.Shareholders.CreateShareholderTx(tx, shareholders.Input{
			FullName: fullname,
			Email:    email,
			Phone:    in.Phone,
			UserID:   &u.UserID,
		}, false)
		if err != nil {
			return err
		}
		id := sh.ShareholderID
		acc = Account{User: u, ShareholderID: &id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", acc.User.UserID.String()).Msg("Member registered, awaiting approval")
	return &acc, nil
}

// VerifyUser validates session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	out := &SessionUserShape{
		UserID:   userID,
		Fullname: str(m["fullname"]),
		Email:    str(m["email"]),
		Role:     str(m["role"]),
	}
	// JSON round-trips through Redis turn numbers into float64.
	switch v := m["shareholder_id"].(type) {
	case float64:
		id := uint(v)
		out.ShareholderID = &id
	case uint:
		id := v
		out.ShareholderID = &id
	case *uint:
		out.ShareholderID = v
	}
	return out, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
