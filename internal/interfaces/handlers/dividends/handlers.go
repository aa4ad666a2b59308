package dividends

import (
	"strconv"

	"sacco-backend/internal/apperrors"
	divsvc "sacco-backend/internal/application/dividends"
	"sacco-backend/internal/interfaces/handlers/params"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handlers serves dividend declaration and distribution.
type Handlers struct {
	Service *divsvc.Service
}

type dividendRequest struct {
	divsvc.Input
	DistributionDate *params.Date `json:"distribution_date"`
}

func (r dividendRequest) input() divsvc.Input {
	in := r.Input
	in.DistributionDate = r.DistributionDate.Ptr()
	return in
}

// CalculateRequest body for the distribution preview.
type CalculateRequest struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	DividendRate decimal.Decimal `json:"dividend_rate"`
}

// Calculate POST /api/v1/dividends/calculate
func (h *Handlers) Calculate(c *fiber.Ctx) error {
	var req CalculateRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	calc, err := h.Service.CalculateDividend(c.UserContext(), req.Year, req.Month, req.TotalProfit, req.DividendRate)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dividend calculated", calc, nil)
}

// CreateDividend POST /api/v1/dividends
func (h *Handlers) CreateDividend(c *fiber.Ctx) error {
	var req dividendRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.CreateDividend(c.UserContext(), req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Dividend declared successfully", d, nil)
}

// ListDividends GET /api/v1/dividends?year=
func (h *Handlers) ListDividends(c *fiber.Ctx) error {
	year := 0
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return response.FromError(c, apperrors.InvalidRequest("Invalid year"))
		}
		year = v
	}
	list, err := h.Service.ListDividends(c.UserContext(), year)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dividends retrieved", list, fiber.Map{"count": len(list)})
}

// GetDividend GET /api/v1/dividends/:id
func (h *Handlers) GetDividend(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.GetDividend(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dividend retrieved", d, nil)
}

// UpdateDividend PUT /api/v1/dividends/:id
func (h *Handlers) UpdateDividend(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req dividendRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.UpdateDividend(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dividend updated successfully", d, nil)
}

// DeleteDividend DELETE /api/v1/dividends/:id
func (h *Handlers) DeleteDividend(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteDividend(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dividend deleted successfully", nil, nil)
}

// Distribute POST /api/v1/dividends/:id/distribute
func (h *Handlers) Distribute(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	dist, err := h.Service.DistributeDividend(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, dist.Summary, dist, nil)
}

// Payouts GET /api/v1/dividends/:id/payouts
func (h *Handlers) Payouts(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	entries, err := h.Service.Payouts(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payouts retrieved", entries, fiber.Map{"count": len(entries)})
}
