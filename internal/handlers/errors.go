package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error to an HTTP status and a client-safe message.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, services.ErrAssignmentConflict):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrAuth):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrPermission):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict, err.Error()
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// WriteError writes the standard error envelope. Server errors are logged
// with the underlying cause; the client only sees a generic message.
func WriteError(c *fiber.Ctx, err error) error {
	status, message := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", RequestID(c),
			"error", err.Error(),
		)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}

// RequestID returns the id set by the requestid middleware, if any.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
