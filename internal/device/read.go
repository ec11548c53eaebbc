package device

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

// ─── Dashboard reads ────────────────────────────────────────────────────
// Every call below logs and returns a fallback on failure.

func (s *Service) ListInterfaces(ctx context.Context, cred routeros.Credential) []models.Interface {
	rows, err := s.run(ctx, cred, "/interface/print")
	if err != nil {
		slog.Debug("Interface list unavailable", "host", cred.Host, "error", err)
		return []models.Interface{}
	}
	out := make([]models.Interface, 0, len(rows))
	for _, r := range rows {
		out = append(out, toInterface(r))
	}
	return out
}

// SampleTraffic returns a one-shot bandwidth sample. On failure the sample
// is zero and marked simulated.
func (s *Service) SampleTraffic(ctx context.Context, cred routeros.Credential, iface string) models.TrafficSample {
	fallback := models.TrafficSample{Interface: iface, Simulated: true, Timestamp: s.now()}
	if err := sanitizeIdentifier("interface", iface); err != nil {
		return fallback
	}
	rows, err := s.run(ctx, cred, "/interface/monitor-traffic", "interface="+iface, "once=")
	if err != nil || len(rows) == 0 {
		slog.Debug("Traffic sample unavailable", "host", cred.Host, "interface", iface, "error", err)
		return fallback
	}
	return toTrafficSample(iface, rows[0], s.now())
}

func (s *Service) ListDHCPLeases(ctx context.Context, cred routeros.Credential) []models.Lease {
	rows, err := s.run(ctx, cred, "/ip/dhcp-server/lease/print")
	if err != nil {
		slog.Debug("DHCP leases unavailable", "host", cred.Host, "error", err)
		return []models.Lease{}
	}
	out := make([]models.Lease, 0, len(rows))
	for _, r := range rows {
		out = append(out, toLease(r))
	}
	return out
}

// ListLogs returns the newest limit entries, newest first.
func (s *Service) ListLogs(ctx context.Context, cred routeros.Credential, limit int) []models.LogEntry {
	rows, err := s.run(ctx, cred, "/log/print")
	if err != nil {
		slog.Debug("Logs unavailable", "host", cred.Host, "error", err)
		return []models.LogEntry{}
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]models.LogEntry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, toLogEntry(rows[i]))
	}
	return out
}

// SystemHealth returns nil when the device has no sensors or is unreachable.
func (s *Service) SystemHealth(ctx context.Context, cred routeros.Credential) []models.HealthSample {
	rows, err := s.run(ctx, cred, "/system/health/print")
	if err != nil {
		slog.Debug("System health unavailable", "host", cred.Host, "error", err)
		return nil
	}
	samples := toHealthSamples(rows)
	if len(samples) == 0 {
		return nil
	}
	return samples
}

func (s *Service) SystemResources(ctx context.Context, cred routeros.Credential) *models.SystemResources {
	rows, err := s.run(ctx, cred, "/system/resource/print")
	if err != nil || len(rows) == 0 {
		slog.Debug("System resources unavailable", "host", cred.Host, "error", err)
		return simulatedResources()
	}
	res := toSystemResources(rows[0])
	return &res
}

func (s *Service) SystemIdentity(ctx context.Context, cred routeros.Credential) *models.SystemIdentity {
	rows, err := s.run(ctx, cred, "/system/identity/print")
	if err != nil || len(rows) == 0 {
		slog.Debug("System identity unavailable", "host", cred.Host, "error", err)
		return nil
	}
	id := toSystemIdentity(rows[0])
	return &id
}

// Ping asks the device to send a single echo to target. Latency is nil on
// timeout or failure.
func (s *Service) Ping(ctx context.Context, cred routeros.Credential, target string) models.PingSample {
	if err := sanitizeAddress(target); err != nil {
		if err := sanitizeIdentifier("target", target); err != nil {
			return models.PingSample{Target: target, Timestamp: s.now()}
		}
	}
	rows, err := s.run(ctx, cred, "/ping", "address="+target, "count="+strconv.Itoa(1))
	if err != nil {
		slog.Debug("Ping unavailable", "host", cred.Host, "target", target, "error", err)
		return models.PingSample{Target: target, Timestamp: s.now()}
	}
	return toPingSample(target, rows, s.now())
}

func simulatedResources() *models.SystemResources {
	return &models.SystemResources{
		Uptime:       "0s",
		Version:      "unavailable",
		BoardName:    "simulated",
		Architecture: "unknown",
		CPUCount:     1,
		Simulated:    true,
	}
}
