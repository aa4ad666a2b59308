package dividends

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

const paymentMethodDividend = "Dividend"

var hundred = decimal.NewFromInt(100)

type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Currency string
	Now      func() time.Time
	tracer   trace.Tracer
}

func NewService(db *gorm.DB, l *ledger.Service, currencyCode string) *Service {
	return &Service{DB: db, Ledger: l, Currency: currencyCode, tracer: otel.Tracer("sacco/dividends")}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.tracer == nil {
		s.tracer = otel.Tracer("sacco/dividends")
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Input is the editable part of a dividend declaration.
type Input struct {
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TotalShares      decimal.Decimal `json:"total_shares"`
	DividendRate     decimal.Decimal `json:"dividend_rate"`
	DistributionDate *time.Time      `json:"distribution_date"`
	Status           string          `json:"status"`
	Notes            *string         `json:"notes"`
}

func validatePeriod(year, month int) error {
	if year < 1900 || year > 9999 {
		return apperrors.InvalidRequest("Invalid dividend year")
	}
	if month < 1 || month > 12 {
		return apperrors.InvalidRequest("Month must be between 1 and 12")
	}
	return nil
}

func validateAmounts(profit, rate decimal.Decimal) error {
	if profit.IsNegative() {
		return apperrors.InvalidRequest("Total profit cannot be negative")
	}
	if !rate.IsPositive() || rate.GreaterThan(hundred) {
		return apperrors.InvalidRequest("Dividend rate must be greater than 0 and at most 100")
	}
	return nil
}

// Pool is the amount distributed for a profit at a percentage rate.
func Pool(profit, rate decimal.Decimal) decimal.Decimal {
	return profit.Mul(rate).Div(hundred).Round(2)
}

// Share is one shareholder's cut of a pool: pool × shares / totalShares,
// rounded to cents. Zero when totalShares is zero.
func Share(pool, shares, totalShares decimal.Decimal) decimal.Decimal {
	if !totalShares.IsPositive() {
		return decimal.Zero
	}
	return pool.Mul(shares).Div(totalShares).Round(2)
}

// ShareholderDividend is one line of a preview.
type ShareholderDividend struct {
	ShareholderID  uint            `json:"shareholder_id"`
	FullName       string          `json:"full_name"`
	TotalShares    decimal.Decimal `json:"total_shares"`
	DividendAmount decimal.Decimal `json:"dividend_amount"`
}

// Calculation is a read-only preview of a distribution.
type Calculation struct {
	Year                int                   `json:"year"`
	Month               int                   `json:"month"`
	Period              string                `json:"period"`
	TotalProfit         decimal.Decimal       `json:"total_profit"`
	DividendRate        decimal.Decimal       `json:"dividend_rate"`
	TotalDividendAmount decimal.Decimal       `json:"total_dividend_amount"`
	TotalSharesInvolved decimal.Decimal       `json:"total_shares_involved"`
	PerShareRate        decimal.Decimal       `json:"per_share_rate"`
	Shareholders        []ShareholderDividend `json:"shareholders"`
}

func eligible(tx *gorm.DB) ([]domain.Shareholder, error) {
	var out []domain.Shareholder
	err := tx.Where("status = ? AND total_shares > ?", domain.ShareholderActive, 0).
		Order("shareholder_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store("Failed to load eligible shareholders", err)
	}
	return out, nil
}

func sumShares(holders []domain.Shareholder) decimal.Decimal {
	total := decimal.Zero
	for _, sh := range holders {
		total = total.Add(sh.TotalShares)
	}
	return total
}

// CalculateDividend previews what each active shareholder would receive.
func (s *Service) CalculateDividend(ctx context.Context, year, month int, profit, rate decimal.Decimal) (*Calculation, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	if err := validateAmounts(profit, rate); err != nil {
		return nil, err
	}
	holders, err := eligible(s.DB.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	total := sumShares(holders)
	pool := Pool(profit, rate)
	calc := &Calculation{
		Year:                year,
		Month:               month,
		Period:              domain.PeriodLabel(year, month),
		TotalProfit:         profit,
		DividendRate:        rate,
		TotalDividendAmount: pool,
		TotalSharesInvolved: total,
		PerShareRate:        decimal.Zero,
		Shareholders:        make([]ShareholderDividend, 0, len(holders)),
	}
	if total.IsPositive() {
		calc.PerShareRate = pool.DivRound(total, 6)
	}
	for _, sh := range holders {
		calc.Shareholders = append(calc.Shareholders, ShareholderDividend{
			ShareholderID:  sh.ShareholderID,
			FullName:       sh.FullName,
			TotalShares:    sh.TotalShares,
			DividendAmount: Share(pool, sh.TotalShares, total),
		})
	}
	sort.SliceStable(calc.Shareholders, func(i, j int) bool {
		return calc.Shareholders[i].DividendAmount.GreaterThan(calc.Shareholders[j].DividendAmount)
	})
	return calc, nil
}

func periodExists(tx *gorm.DB, year, month int, excludeID uint) (bool, error) {
	var count int64
	q := tx.Model(&domain.Dividend{}).Where("year = ? AND month = ?", year, month)
	if excludeID != 0 {
		q = q.Where("dividend_id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Store("Failed to check dividend period", err)
	}
	return count > 0, nil
}

func declarableStatus(status string) (string, error) {
	switch status {
	case "", domain.DividendPending:
		return domain.DividendPending, nil
	case domain.DividendApproved, domain.DividendCancelled:
		return status, nil
	case domain.DividendDistributed:
		return "", apperrors.InvalidRequest("Use distribute to mark a dividend as Distributed")
	default:
		return "", apperrors.InvalidRequest("Invalid dividend status")
	}
}

// CreateDividend declares a dividend for a period. TotalDividendPaid is
// derived from profit and rate; a zero TotalShares is filled from the live sum.
func (s *Service) CreateDividend(ctx context.Context, in Input) (*domain.Dividend, error) {
	if err := validatePeriod(in.Year, in.Month); err != nil {
		return nil, err
	}
	if err := validateAmounts(in.TotalProfit, in.DividendRate); err != nil {
		return nil, err
	}
	status, err := declarableStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if status == domain.DividendCancelled {
		return nil, apperrors.InvalidRequest("A new dividend cannot start Cancelled")
	}

	var d *domain.Dividend
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := periodExists(tx, in.Year, in.Month, 0)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.DuplicatePeriod(fmt.Sprintf("Dividend for %s already exists", domain.PeriodLabel(in.Year, in.Month)))
		}
		totalShares := in.TotalShares
		if !totalShares.IsPositive() {
			holders, err := eligible(tx)
			if err != nil {
				return err
			}
			totalShares = sumShares(holders)
		}
		d = &domain.Dividend{
			Year:              in.Year,
			Month:             in.Month,
			TotalProfit:       in.TotalProfit,
			TotalShares:       totalShares,
			DividendRate:      in.DividendRate,
			TotalDividendPaid: Pool(in.TotalProfit, in.DividendRate),
			DistributionDate:  s.now(),
			Status:            status,
			Notes:             in.Notes,
		}
		if in.DistributionDate != nil {
			d.DistributionDate = *in.DistributionDate
		}
		if err := tx.Create(d).Error; err != nil {
			return apperrors.Store("Failed to create dividend", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("dividend_id", d.DividendID).Str("period", d.PeriodLabel()).Str("status", d.Status).Msg("Dividend declared")
	return d, nil
}

func loadDividend(tx *gorm.DB, id uint) (*domain.Dividend, error) {
	var d domain.Dividend
	if err := tx.First(&d, "dividend_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Dividend not found")
		}
		return nil, apperrors.Store("Failed to load dividend", err)
	}
	return &d, nil
}

// UpdateDividend edits an undistributed dividend and recomputes TotalDividendPaid.
func (s *Service) UpdateDividend(ctx context.Context, id uint, in Input) (*domain.Dividend, error) {
	if err := validatePeriod(in.Year, in.Month); err != nil {
		return nil, err
	}
	if err := validateAmounts(in.TotalProfit, in.DividendRate); err != nil {
		return nil, err
	}
	status, err := declarableStatus(in.Status)
	if err != nil {
		return nil, err
	}

	var d *domain.Dividend
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if d, err = loadDividend(tx, id); err != nil {
			return err
		}
		if d.Status == domain.DividendDistributed {
			return apperrors.AlreadyDistributed("Cannot modify distributed dividend")
		}
		exists, err := periodExists(tx, in.Year, in.Month, id)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.DuplicatePeriod(fmt.Sprintf("Dividend for %s already exists", domain.PeriodLabel(in.Year, in.Month)))
		}
		d.Year = in.Year
		d.Month = in.Month
		d.TotalProfit = in.TotalProfit
		if in.TotalShares.IsPositive() {
			d.TotalShares = in.TotalShares
		}
		d.DividendRate = in.DividendRate
		d.TotalDividendPaid = Pool(in.TotalProfit, in.DividendRate)
		if in.DistributionDate != nil {
			d.DistributionDate = *in.DistributionDate
		}
		d.Status = status
		d.Notes = in.Notes
		// the status guard keeps a concurrent distribution from being overwritten
		res := tx.Model(&domain.Dividend{}).
			Where("dividend_id = ? AND status <> ?", id, domain.DividendDistributed).
			Updates(map[string]interface{}{
				"year":                d.Year,
				"month":               d.Month,
				"total_profit":        d.TotalProfit,
				"total_shares":        d.TotalShares,
				"dividend_rate":       d.DividendRate,
				"total_dividend_paid": d.TotalDividendPaid,
				"distribution_date":   d.DistributionDate,
				"status":              d.Status,
				"notes":               d.Notes,
			})
		if res.Error != nil {
			return apperrors.Store("Failed to update dividend", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.AlreadyDistributed("Cannot modify distributed dividend")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDividend removes an undistributed dividend.
func (s *Service) DeleteDividend(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := loadDividend(tx, id)
		if err != nil {
			return err
		}
		if d.Status == domain.DividendDistributed {
			return apperrors.AlreadyDistributed("Cannot delete distributed dividend")
		}
		res := tx.Where("dividend_id = ? AND status <> ?", id, domain.DividendDistributed).Delete(&domain.Dividend{})
		if res.Error != nil {
			return apperrors.Store("Failed to delete dividend", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.AlreadyDistributed("Cannot delete distributed dividend")
		}
		log.Info().Uint("dividend_id", id).Msg("Dividend deleted")
		return nil
	})
}

// Distribution summarizes a completed distribution.
type Distribution struct {
	Dividend      *domain.Dividend `json:"dividend"`
	Recipients    int              `json:"recipients"`
	TotalCredited decimal.Decimal  `json:"total_credited"`
	Residual      decimal.Decimal  `json:"residual"`
	Summary       string           `json:"summary"`
}

// claim moves the dividend to Distributed. Only one concurrent caller can win.
func claim(tx *gorm.DB, id uint) (*domain.Dividend, error) {
	res := tx.Model(&domain.Dividend{}).
		Where("dividend_id = ? AND status IN ?", id, []string{domain.DividendPending, domain.DividendApproved}).
		Updates(map[string]interface{}{"status": domain.DividendDistributed, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, apperrors.Store("Failed to claim dividend", res.Error)
	}
	d, err := loadDividend(tx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if d.Status == domain.DividendCancelled {
			return nil, apperrors.InvalidState("Cancelled dividends cannot be distributed")
		}
		return nil, apperrors.AlreadyDistributed("Dividend has already been distributed")
	}
	return d, nil
}

// DistributeDividend credits every active shareholder with shares their
// pro-rata part of TotalDividendPaid, all in one transaction. Credits are
// rounded to cents; the rounding residual is reported, not redistributed.
func (s *Service) DistributeDividend(ctx context.Context, id uint) (*Distribution, error) {
	ctx, span := s.startSpan(ctx, "dividends.distribute", attribute.Int64("dividend.id", int64(id)))
	defer span.End()

	var out *Distribution
	err := s.Ledger.Settle(ctx, "dividend.distribute", func(tx *gorm.DB) error {
		d, err := claim(tx, id)
		if err != nil {
			return err
		}
		holders, err := eligible(ledger.ForUpdate(tx))
		if err != nil {
			return err
		}
		if len(holders) == 0 {
			return apperrors.NoRecipients("No active shareholders found")
		}
		total := sumShares(holders)

		label := d.PeriodLabel()
		desc := "Dividend for " + label
		method := paymentMethodDividend
		credited := decimal.Zero
		recipients := 0
		for i := range holders {
			sh := &holders[i]
			amount := Share(d.TotalDividendPaid, sh.TotalShares, total)
			if !amount.IsPositive() {
				continue
			}
			if _, err := ledger.Post(tx, sh, ledger.Posting{
				EntryType:     domain.EntryDividend,
				Amount:        amount,
				ReferenceType: domain.RefDividend,
				ReferenceID:   d.DividendID,
				Description:   desc,
				Metadata: map[string]interface{}{
					"period":       label,
					"total_shares": sh.TotalShares.String(),
				},
				Certificate: &ledger.CertificateRecord{
					Type:          domain.TxDividend,
					Date:          d.DistributionDate,
					PaymentMethod: &method,
					Description:   &desc,
				},
			}); err != nil {
				return err
			}
			credited = credited.Add(amount)
			recipients++
		}

		if err := tx.Model(&domain.Dividend{}).Where("dividend_id = ?", d.DividendID).
			Update("total_shares", total).Error; err != nil {
			return apperrors.Store("Failed to record distributed shares", err)
		}
		d.TotalShares = total
		d.Status = domain.DividendDistributed

		out = &Distribution{
			Dividend:      d,
			Recipients:    recipients,
			TotalCredited: credited,
			Residual:      d.TotalDividendPaid.Sub(credited),
			Summary: fmt.Sprintf("Distributed %s to %d shareholders for %s",
				currency.Format(credited, s.Currency), recipients, label),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.Message(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("dividend.recipients", out.Recipients), attribute.String("dividend.credited", out.TotalCredited.String()))
	log.Info().Uint("dividend_id", id).Int("recipients", out.Recipients).
		Str("credited", out.TotalCredited.String()).Str("residual", out.Residual.String()).Msg("Dividend distributed")
	return out, nil
}

// DistributeDue distributes every Approved dividend whose distribution date
// is not after now. A failure on one dividend does not stop the others.
func (s *Service) DistributeDue(ctx context.Context, now time.Time) ([]*Distribution, error) {
	var due []domain.Dividend
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND distribution_date <= ?", domain.DividendApproved, now).
		Order("distribution_date ASC").
		Find(&due).Error; err != nil {
		return nil, apperrors.Store("Failed to load due dividends", err)
	}
	var out []*Distribution
	var errs []error
	for _, d := range due {
		res, err := s.DistributeDividend(ctx, d.DividendID)
		if err != nil {
			log.Error().Err(err).Uint("dividend_id", d.DividendID).Msg("Scheduled dividend distribution failed")
			errs = append(errs, fmt.Errorf("dividend %d: %w", d.DividendID, err))
			continue
		}
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}

func (s *Service) GetDividend(ctx context.Context, id uint) (*domain.Dividend, error) {
	return loadDividend(s.DB.WithContext(ctx), id)
}

// ListDividends returns dividends newest period first, optionally for one year.
func (s *Service) ListDividends(ctx context.Context, year int) ([]domain.Dividend, error) {
	q := s.DB.WithContext(ctx).Order("year DESC").Order("month DESC")
	if year != 0 {
		q = q.Where("year = ?", year)
	}
	var out []domain.Dividend
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Store("Failed to list dividends", err)
	}
	return out, nil
}

// Payouts lists the ledger credits written by a distribution.
func (s *Service) Payouts(ctx context.Context, id uint) ([]domain.LedgerEntry, error) {
	if _, err := s.GetDividend(ctx, id); err != nil {
		return nil, err
	}
	return s.Ledger.EntriesFor(ctx, domain.RefDividend, id)
}
