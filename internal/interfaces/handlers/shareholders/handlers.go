package shareholders

import (
	"sacco-backend/internal/application/emails"
	"sacco-backend/internal/application/ledger"
	shsvc "sacco-backend/internal/application/shareholders"
	"sacco-backend/internal/interfaces/handlers/params"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers serves the admin shareholder registry.
type Handlers struct {
	Service *shsvc.Service
	Ledger  *ledger.Service
	Mailer  emails.Sender
}

type shareholderRequest struct {
	shsvc.Input
	JoinDate    *params.Date `json:"join_date"`
	DateOfBirth *params.Date `json:"date_of_birth"`
}

func (r shareholderRequest) input() shsvc.Input {
	in := r.Input
	in.JoinDate = r.JoinDate.Ptr()
	in.DateOfBirth = r.DateOfBirth.Ptr()
	return in
}

// CreateShareholder POST /api/v1/shareholders
func (h *Handlers) CreateShareholder(c *fiber.Ctx) error {
	var req shareholderRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	sh, err := h.Service.CreateShareholder(c.UserContext(), req.input(), true)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Shareholder created successfully", sh, nil)
}

// ListShareholders GET /api/v1/shareholders?status=
func (h *Handlers) ListShareholders(c *fiber.Ctx) error {
	list, err := h.Service.ListShareholders(c.UserContext(), c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shareholders retrieved", list, fiber.Map{"count": len(list)})
}

// GetShareholder GET /api/v1/shareholders/:id
func (h *Handlers) GetShareholder(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	sh, err := h.Service.GetShareholder(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shareholder retrieved", sh, nil)
}

// UpdateShareholder PUT /api/v1/shareholders/:id
func (h *Handlers) UpdateShareholder(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req shareholderRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	sh, err := h.Service.UpdateShareholder(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shareholder updated successfully", sh, nil)
}

// ApproveShareholder PATCH /api/v1/shareholders/:id/approve
func (h *Handlers) ApproveShareholder(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	sh, err := h.Service.ApproveShareholder(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if h.Mailer != nil {
		if err := h.Mailer.SendMembershipApproved(c.UserContext(), sh.Email, sh.FullName); err != nil {
			log.Warn().Err(err).Uint("shareholder_id", sh.ShareholderID).Msg("approval email failed")
		}
	}
	return response.Success(c, "Shareholder approved", sh, nil)
}

// DeleteShareholder DELETE /api/v1/shareholders/:id
func (h *Handlers) DeleteShareholder(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteShareholder(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shareholder deleted successfully", nil, nil)
}

// Shares GET /api/v1/shareholders/:id/shares
func (h *Handlers) Shares(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	shares, err := h.Service.Shares(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shares retrieved", shares, nil)
}

// Ledger GET /api/v1/shareholders/:id/ledger
func (h *Handlers) Ledger(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	entries, err := h.Ledger.Entries(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ledger retrieved", entries, fiber.Map{"count": len(entries)})
}

// Reconcile GET /api/v1/shareholders/:id/reconcile
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rec, err := h.Ledger.Reconcile(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reconciliation complete", rec, nil)
}
