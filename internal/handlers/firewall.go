package handlers

import (
	"net/url"
	"strings"

	"github.com/ahmetk3436/routerwatch/internal/device"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

type FirewallHandler struct {
	device *device.Service
}

func NewFirewallHandler(dev *device.Service) *FirewallHandler {
	return &FirewallHandler{device: dev}
}

func (h *FirewallHandler) ListEntries(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	entries, err := h.device.ListAddressEntries(c.UserContext(), cred, c.Query("list"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *FirewallHandler) ListNames(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	names, err := h.device.AddressListNames(c.UserContext(), cred)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"lists": names})
}

func (h *FirewallHandler) AddEntry(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req device.AddressEntryInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	id, err := h.device.AddAddressEntry(c.UserContext(), cred, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *FirewallHandler) ToggleEntry(c *fiber.Ctx) error {
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
	if err := h.device.ToggleAddressEntry(c.UserContext(), cred, itemID(c), req.Disabled); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *FirewallHandler) MoveEntry(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Destination string `json:"destination"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.device.MoveAddressEntry(c.UserContext(), cred, itemID(c), starred(req.Destination)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *FirewallHandler) RemoveEntry(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.device.RemoveAddressEntry(c.UserContext(), cred, itemID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *FirewallHandler) ListRules(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	rules, err := h.device.ListFilterRules(c.UserContext(), cred)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"rules": rules})
}

func (h *FirewallHandler) ToggleRule(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.device.ToggleFilterRule(c.UserContext(), cred, starred(req.ID), req.Enabled); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// itemID reads the :id param. Clients may send "*1A", "%2A1A" or "1A".
func itemID(c *fiber.Ctx) string {
	id := c.Params("id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return starred(id)
}

func starred(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "*") {
		return id
	}
	return "*" + id
}
