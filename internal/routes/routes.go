package routes

import (
	"github.com/ahmetk3436/routerwatch/internal/handlers"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func Setup(
	app *fiber.App,
	verifier middleware.Verifier,
	loginLimiter fiber.Handler,
	authHandler *handlers.AuthHandler,
	systemHandler *handlers.SystemHandler,
	firewallHandler *handlers.FirewallHandler,
	queueHandler *handlers.QueueHandler,
	preferencesHandler *handlers.PreferencesHandler,
	nodeHandler *handlers.NodeHandler,
	telemetryHandler *handlers.TelemetryHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/login", loginLimiter, authHandler.Login)
	app.Post("/api/auth/logout", authHandler.Logout)

	// ─── Telemetry (WebSocket) ───────────────────────────────────────────
	app.Use("/ws", telemetryHandler.UpgradeCheck(), middleware.SessionProtected(verifier))
	app.Get("/ws", telemetryHandler.HandleSocket())

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.SessionProtected(verifier))

	api.Get("/auth/me", authHandler.Me)

	// Preferences
	api.Get("/preferences", preferencesHandler.Get)
	api.Put("/preferences", preferencesHandler.Update)
	api.Delete("/preferences", preferencesHandler.Reset)

	// Dashboard
	api.Get("/interfaces", systemHandler.Interfaces)
	api.Get("/interfaces/:name/traffic", systemHandler.Traffic)
	api.Get("/dhcp/leases", systemHandler.DHCPLeases)
	api.Get("/logs", systemHandler.Logs)

	// System
	api.Get("/system/resources", systemHandler.Resources)
	api.Get("/system/health", systemHandler.DeviceHealth)
	api.Get("/system/identity", systemHandler.Identity)
	api.Post("/system/reboot", systemHandler.Reboot)
	api.Get("/system/updates", systemHandler.CheckUpdates)
	api.Post("/system/updates/install", systemHandler.InstallUpdates)

	// Firewall filter rules
	api.Get("/firewall/rules", firewallHandler.ListRules)
	api.Post("/firewall/toggle", firewallHandler.ToggleRule)

	// Firewall address lists
	fw := api.Group("/firewall/address-list")
	fw.Get("/", firewallHandler.ListEntries)
	fw.Post("/", firewallHandler.AddEntry)
	fw.Get("/names", firewallHandler.ListNames)
	fw.Post("/:id/toggle", firewallHandler.ToggleEntry)
	fw.Post("/:id/move", firewallHandler.MoveEntry)
	fw.Delete("/:id", firewallHandler.RemoveEntry)

	// Simple queues
	api.Get("/queues", queueHandler.ListQueues)
	api.Post("/queues", queueHandler.CreateQueue)
	api.Put("/queues/:id", queueHandler.UpdateQueue)
	api.Post("/queues/:id/toggle", queueHandler.ToggleQueue)
	api.Delete("/queues/:id", queueHandler.DeleteQueue)

	// Monitored nodes
	api.Get("/nodes", nodeHandler.ListNodes)
	api.Post("/nodes", nodeHandler.CreateNode)
	api.Put("/nodes/:id", nodeHandler.UpdateNode)
	api.Delete("/nodes/:ip", nodeHandler.DeleteNode)
}
