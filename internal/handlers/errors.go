package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetk3436/routerwatch/internal/auth"
	"github.com/ahmetk3436/routerwatch/internal/device"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/ahmetk3436/routerwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, routeros.ErrInvalidCredential):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidSession):
		return fiber.StatusUnauthorized
	case errors.Is(err, device.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, device.ErrNotFound),
		errors.Is(err, services.ErrNodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, device.ErrConflict),
		errors.Is(err, services.ErrDuplicateIP):
		return fiber.StatusConflict
	case errors.Is(err, routeros.ErrCooldownActive):
		return fiber.StatusTooManyRequests
	case errors.Is(err, routeros.ErrConnectFailure),
		errors.Is(err, routeros.ErrConnectionBroken),
		errors.Is(err, device.ErrUnknown):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "error", err)
		message = "Internal server error"
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   true,
		"message": "Not authenticated",
	})
}
