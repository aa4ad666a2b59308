package middleware

import (
	"errors"

	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. fiber errors keep their code;
// service errors are mapped by kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	return response.FromError(c, err)
}
