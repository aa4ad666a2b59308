package transfers

import (
	transfersvc "sacco-backend/internal/application/transfers"
	"sacco-backend/internal/interfaces/handlers/params"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves share transfers.
type Handlers struct {
	Service *transfersvc.Service
}

type createRequest struct {
	transfersvc.Input
	TransferDate *params.Date `json:"transfer_date"`
}

type updateRequest struct {
	transfersvc.UpdateInput
	TransferDate *params.Date `json:"transfer_date"`
}

// CreateTransfer POST /api/v1/transfers
func (h *Handlers) CreateTransfer(c *fiber.Ctx) error {
	var req createRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	in := req.Input
	in.TransferDate = req.TransferDate.Ptr()
	t, err := h.Service.CreateTransfer(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Transfer recorded successfully", t, nil)
}

// ListTransfers GET /api/v1/transfers?shareholder_id=&status=
func (h *Handlers) ListTransfers(c *fiber.Ctx) error {
	shareholderID, err := params.QueryUint(c, "shareholder_id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListTransfers(c.UserContext(), transfersvc.Filter{
		ShareholderID: shareholderID,
		Status:        c.Query("status"),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfers retrieved", list, fiber.Map{"count": len(list)})
}

// GetTransfer GET /api/v1/transfers/:id
func (h *Handlers) GetTransfer(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.GetTransfer(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer retrieved", t, nil)
}

// UpdateTransfer PUT /api/v1/transfers/:id. A correction to a completed
// transfer answers with the new corrected transfer.
func (h *Handlers) UpdateTransfer(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req updateRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	in := req.UpdateInput
	in.TransferDate = req.TransferDate.Ptr()
	t, err := h.Service.UpdateTransfer(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	msg := "Transfer updated successfully"
	if t.TransferID != id {
		msg = "Transfer corrected: original reversed and replaced"
	}
	return response.Success(c, msg, t, nil)
}

// CancelTransfer POST /api/v1/transfers/:id/cancel
func (h *Handlers) CancelTransfer(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.CancelTransfer(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer cancelled", t, nil)
}

// DeleteTransfer DELETE /api/v1/transfers/:id
func (h *Handlers) DeleteTransfer(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteTransfer(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer deleted successfully", nil, nil)
}
