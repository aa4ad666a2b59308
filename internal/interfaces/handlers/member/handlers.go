package member

import (
	"sacco-backend/internal/application/ledger"
	shsvc "sacco-backend/internal/application/shareholders"
	transfersvc "sacco-backend/internal/application/transfers"
	"sacco-backend/internal/middleware"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves a member's read-only view of their own account.
type Handlers struct {
	Shareholders *shsvc.Service
	Ledger       *ledger.Service
	Transfers    *transfersvc.Service
}

// Profile GET /api/v1/member/profile
func (h *Handlers) Profile(c *fiber.Ctx) error {
	id, ok := middleware.CurrentShareholderID(c)
	if !ok {
		return response.Error(c, "No shareholder profile is linked to this account", fiber.StatusForbidden, nil)
	}
	sh, err := h.Shareholders.GetShareholder(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	shares, err := h.Shareholders.Shares(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Profile retrieved", fiber.Map{
		"shareholder": sh,
		"shares":      shares,
	}, nil)
}

// Ledger GET /api/v1/member/ledger
func (h *Handlers) Ledger(c *fiber.Ctx) error {
	id, ok := middleware.CurrentShareholderID(c)
	if !ok {
		return response.Error(c, "No shareholder profile is linked to this account", fiber.StatusForbidden, nil)
	}
	entries, err := h.Ledger.Entries(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ledger retrieved", entries, fiber.Map{"count": len(entries)})
}

// Transfers GET /api/v1/member/transfers
func (h *Handlers) Transfers(c *fiber.Ctx) error {
	id, ok := middleware.CurrentShareholderID(c)
	if !ok {
		return response.Error(c, "No shareholder profile is linked to this account", fiber.StatusForbidden, nil)
	}
	list, err := h.Transfers.ListTransfers(c.UserContext(), transfersvc.Filter{ShareholderID: id})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfers retrieved", list, fiber.Map{"count": len(list)})
}
