package shares

import (
	sharesvc "sacco-backend/internal/application/shares"
	"sacco-backend/internal/interfaces/handlers/params"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves share certificates.
type Handlers struct {
	Service *sharesvc.Service
}

type shareRequest struct {
	sharesvc.Input
	PurchaseDate *params.Date `json:"purchase_date"`
	MaturityDate *params.Date `json:"maturity_date"`
}

func (r shareRequest) input() sharesvc.Input {
	in := r.Input
	in.PurchaseDate = r.PurchaseDate.Ptr()
	in.MaturityDate = r.MaturityDate.Ptr()
	return in
}

// CreateShare POST /api/v1/shares
func (h *Handlers) CreateShare(c *fiber.Ctx) error {
	var req shareRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	share, err := h.Service.CreateShare(c.UserContext(), req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Share certificate created successfully", share, nil)
}

// ListShares GET /api/v1/shares?shareholder_id=
func (h *Handlers) ListShares(c *fiber.Ctx) error {
	shareholderID, err := params.QueryUint(c, "shareholder_id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListShares(c.UserContext(), shareholderID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Shares retrieved", list, fiber.Map{"count": len(list)})
}

// NextCertificateNumber GET /api/v1/shares/next-certificate-number
func (h *Handlers) NextCertificateNumber(c *fiber.Ctx) error {
	number, err := h.Service.GenerateNextCertificateNumber(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Next certificate number", fiber.Map{"certificate_number": number}, nil)
}

// GetShare GET /api/v1/shares/:id
func (h *Handlers) GetShare(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	share, err := h.Service.GetShare(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Share retrieved", share, nil)
}

// Transactions GET /api/v1/shares/:id/transactions
func (h *Handlers) Transactions(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.Transactions(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transactions retrieved", list, nil)
}

// UpdateShare PUT /api/v1/shares/:id
func (h *Handlers) UpdateShare(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req shareRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	share, err := h.Service.UpdateShare(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Share certificate updated successfully", share, nil)
}

// DeleteShare DELETE /api/v1/shares/:id
func (h *Handlers) DeleteShare(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteShare(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Share certificate deleted successfully", nil, nil)
}
