package transactions

import (
	txsvc "sacco-backend/internal/application/transactions"
	"sacco-backend/internal/interfaces/handlers/params"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *txsvc.Service
}

type createRequest struct {
	txsvc.Input
	TransactionDate *params.Date `json:"transaction_date"`
}

type updateRequest struct {
	txsvc.UpdateInput
	TransactionDate *params.Date `json:"transaction_date"`
}

// POST /api/v1/transactions
func (h *Handlers) CreateTransaction(c *fiber.Ctx) error {
	var req createRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	in := req.Input
	in.TransactionDate = req.TransactionDate.Ptr()
	tx, err := h.Service.CreateTransaction(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Transaction recorded successfully", tx, nil)
}

// GET /api/v1/transactions?share_id=&shareholder_id=&transaction_type=
func (h *Handlers) GetTransactions(c *fiber.Ctx) error {
	shareID, err := params.QueryUint(c, "share_id")
	if err != nil {
		return response.FromError(c, err)
	}
	shareholderID, err := params.QueryUint(c, "shareholder_id")
	if err != nil {
		return response.FromError(c, err)
	}
	data, err := h.Service.ListTransactions(c.UserContext(), txsvc.Filter{
		ShareID:         shareID,
		ShareholderID:   shareholderID,
		TransactionType: c.Query("transaction_type"),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", data, fiber.Map{"count": len(data)})
}

// GET /api/v1/transactions/summary
func (h *Handlers) Summary(c *fiber.Ctx) error {
	sum, err := h.Service.Summarize(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transaction summary", sum, nil)
}

// GET /api/v1/transactions/:id
func (h *Handlers) GetTransaction(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	tx, err := h.Service.GetTransaction(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transaction fetched successfully", tx, nil)
}

// PUT /api/v1/transactions/:id
func (h *Handlers) UpdateTransaction(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req updateRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	in := req.UpdateInput
	in.TransactionDate = req.TransactionDate.Ptr()
	tx, err := h.Service.UpdateTransaction(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transaction updated successfully", tx, nil)
}

// DELETE /api/v1/transactions/:id
func (h *Handlers) DeleteTransaction(c *fiber.Ctx) error {
	id, err := params.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteTransaction(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transaction deleted successfully", nil, nil)
}
