package handlers

import (
	"context"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/device"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/gofiber/fiber/v2"
)

var startTime = time.Now()
var Version = "1.0.0"

type RegistryStats interface {
	Stats() routeros.RegistryStats
}

// Pinger is implemented by stores that have a backend worth checking.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	device   *device.Service
	registry RegistryStats
	store    Pinger
	logLimit int
}

func NewSystemHandler(dev *device.Service, registry RegistryStats, store Pinger, logLimit int) *SystemHandler {
	if logLimit <= 0 {
		logLimit = 20
	}
	return &SystemHandler{device: dev, registry: registry, store: store, logLimit: logLimit}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	statusCode := fiber.StatusOK
	storeStatus := "ok"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			storeStatus = "unreachable: " + err.Error()
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if statusCode != fiber.StatusOK {
		overall = "degraded"
	}

	stats := h.registry.Stats()
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  overall,
		"service": "routerwatch",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(startTime).String(),
		"store":   storeStatus,
		"connections": fiber.Map{
			"live":    stats.Live,
			"pending": stats.Pending,
			"failed":  stats.Failed,
		},
	})
}

// ─── Dashboard reads ────────────────────────────────────────────────────
// These never fail; an unreachable device yields fallback data.

func (h *SystemHandler) Interfaces(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"interfaces": h.device.ListInterfaces(c.UserContext(), cred)})
}

func (h *SystemHandler) Traffic(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(h.device.SampleTraffic(c.UserContext(), cred, c.Params("name")))
}

func (h *SystemHandler) DHCPLeases(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"leases": h.device.ListDHCPLeases(c.UserContext(), cred)})
}

func (h *SystemHandler) Logs(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	limit := c.QueryInt("limit", h.logLimit)
	if limit <= 0 || limit > 1000 {
		limit = h.logLimit
	}
	return c.JSON(fiber.Map{"logs": h.device.ListLogs(c.UserContext(), cred, limit)})
}

func (h *SystemHandler) Resources(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(h.device.SystemResources(c.UserContext(), cred))
}

func (h *SystemHandler) DeviceHealth(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"health": h.device.SystemHealth(c.UserContext(), cred)})
}

func (h *SystemHandler) Identity(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"identity": h.device.SystemIdentity(c.UserContext(), cred)})
}

// ─── Maintenance ────────────────────────────────────────────────────────

func (h *SystemHandler) Reboot(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.device.Reboot(c.UserContext(), cred); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Device is rebooting"})
}

func (h *SystemHandler) CheckUpdates(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	status, err := h.device.CheckUpdates(c.UserContext(), cred)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

func (h *SystemHandler) InstallUpdates(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.device.InstallUpdates(c.UserContext(), cred); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Installing updates, the device will reboot"})
}
