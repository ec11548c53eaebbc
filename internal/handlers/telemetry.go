package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/ahmetk3436/routerwatch/internal/services"
	"github.com/ahmetk3436/routerwatch/internal/telemetry"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const writeTimeout = 10 * time.Second

type TelemetryHandler struct {
	device telemetry.Device
	meter  telemetry.LatencyMeter
	nodes  telemetry.Nodes
	prefs  *services.PreferencesStore
	opts   telemetry.Options
}

// NewTelemetryHandler builds the socket handler. Feed periods are bounded
// the same way the preferences store bounds them.
func NewTelemetryHandler(dev telemetry.Device, meter telemetry.LatencyMeter, nodes telemetry.Nodes, prefs *services.PreferencesStore, opts telemetry.Options) *TelemetryHandler {
	opts.Bounds = prefs.Bounds()
	return &TelemetryHandler{device: dev, meter: meter, nodes: nodes, prefs: prefs, opts: opts}
}

// UpgradeCheck is middleware that checks if the request is a websocket upgrade
func (h *TelemetryHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleSocket runs one telemetry session for the lifetime of the socket.
func (h *TelemetryHandler) HandleSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		cred, ok := c.Locals(middleware.CredentialKey).(routeros.Credential)
		if !ok {
			c.WriteJSON(fiber.Map{"event": "error", "data": "Not authenticated"})
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		session := telemetry.Start(ctx, telemetry.Config{
			Credential:  cred,
			Device:      h.device,
			Meter:       h.meter,
			Nodes:       h.nodes,
			Preferences: h.prefs,
			Emitter:     &socketEmitter{conn: c},
			Intervals:   h.prefs.Get(cred.Identity()),
			Options:     h.opts,
		})
		defer session.Stop()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				slog.Debug("Telemetry socket closed", "identity", cred.Identity(), "error", err)
				return
			}

			var msg telemetry.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				session.Send(telemetry.EventAck, telemetry.Ack{OK: false, Error: "malformed message"})
				continue
			}
			ack := session.Handle(ctx, msg)
			if err := session.Send(telemetry.EventAck, ack); err != nil {
				return
			}
		}
	})
}

// socketEmitter writes {event, data} frames. The session serializes calls.
type socketEmitter struct {
	conn *websocket.Conn
}

func (e *socketEmitter) Emit(event string, payload any) error {
	e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return e.conn.WriteJSON(fiber.Map{"event": event, "data": payload})
}
