package handlers

import (
	"github.com/ahmetk3436/routerwatch/internal/device"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

type QueueHandler struct {
	device *device.Service
}

func NewQueueHandler(dev *device.Service) *QueueHandler {
	return &QueueHandler{device: dev}
}

func (h *QueueHandler) ListQueues(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	queues, err := h.device.ListQueues(c.UserContext(), cred)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"queues": queues})
}

func (h *QueueHandler) CreateQueue(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req device.QueueInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	id, err := h.device.AddQueue(c.UserContext(), cred, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *QueueHandler) UpdateQueue(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req device.QueueInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.device.UpdateQueue(c.UserContext(), cred, itemID(c), req); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *QueueHandler) ToggleQueue(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Disabled bool `json:"disabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.device.ToggleQueue(c.UserContext(), cred, itemID(c), req.Disabled); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *QueueHandler) DeleteQueue(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.device.DeleteQueue(c.UserContext(), cred, itemID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
