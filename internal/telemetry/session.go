// Package telemetry runs the per-connection feed loops that push device and
// node data to one client.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

type Feed string

const (
	FeedRealtime    Feed = "realtime"
	FeedDHCP        Feed = "dhcp"
	FeedPing        Feed = "ping"
	FeedLog         Feed = "log"
	FeedInterface   Feed = "interface"
	FeedNodeMonitor Feed = "nodeMonitor"
)

var Feeds = []Feed{FeedRealtime, FeedDHCP, FeedPing, FeedLog, FeedInterface, FeedNodeMonitor}

const (
	EventRealtimeStats   = "realtime-stats"
	EventDHCPLeases      = "dhcp-leases"
	EventPingLatency     = "ping-latency"
	EventSystemLogs      = "system-logs"
	EventInterfaceStatus = "interface-status"
	EventNodeStats       = "node-stats"
)

// Emitter delivers one named event to the connected client. Calls are
// serialized by the session.
type Emitter interface {
	Emit(event string, payload any) error
}

// Device is the read side of the device facade. Implementations must not
// fail; they return fallback data instead.
type Device interface {
	SystemResources(ctx context.Context, cred routeros.Credential) *models.SystemResources
	SystemHealth(ctx context.Context, cred routeros.Credential) []models.HealthSample
	SystemIdentity(ctx context.Context, cred routeros.Credential) *models.SystemIdentity
	SampleTraffic(ctx context.Context, cred routeros.Credential, iface string) models.TrafficSample
	ListDHCPLeases(ctx context.Context, cred routeros.Credential) []models.Lease
	Ping(ctx context.Context, cred routeros.Credential, target string) models.PingSample
	ListLogs(ctx context.Context, cred routeros.Credential, limit int) []models.LogEntry
	ListInterfaces(ctx context.Context, cred routeros.Credential) []models.Interface
}

// LatencyMeter measures the round trip from this server to a host.
type LatencyMeter interface {
	Measure(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

type Nodes interface {
	Tick(ctx context.Context) ([]models.Node, error)
	List() []models.Node
	Add(ctx context.Context, ip, name string) (models.Node, error)
	Remove(ctx context.Context, ip string) error
	Edit(ctx context.Context, id, ip, name string) (models.Node, error)
}

type Preferences interface {
	Update(ctx context.Context, identity string, partial models.Preferences) (models.Preferences, error)
}

type Options struct {
	// PingTarget, when set, adds a device-side ping to the ping feed.
	PingTarget       string
	EchoTimeout     time.Duration
	LogLimit         int
	DefaultInterface string
	// Bounds limits every feed period. Zero means
	// models.DefaultIntervalBounds.
	Bounds models.IntervalBounds
	// EmitOnStart fires every feed once right after Start.
	EmitOnStart bool
}

type Config struct {
	Credential  routeros.Credential
	Device      Device
	Meter       LatencyMeter
	Nodes       Nodes
	Preferences Preferences
	Emitter     Emitter
	Intervals   models.Preferences
	Options     Options
}

// RealtimeStats merges resources, identity, health and one bandwidth
// sample into a single dashboard frame.
type RealtimeStats struct {
	Resources   *models.SystemResources `json:"resources"`
	Bandwidth   models.TrafficSample    `json:"bandwidth"`
	Health      HealthSummary           `json:"health"`
	Timestamp   time.Time               `json:"timestamp"`
	Identity    string                  `json:"identity"`
	User        string                  `json:"user"`
	Interface   string                  `json:"interface"`
	Uptime      string                  `json:"uptime"`
	Model       string                  `json:"model"`
	Version     string                  `json:"version"`
	CPUUsage    float64                 `json:"cpuUsage"`
	TotalMemory int64                   `json:"totalMemory"`
	FreeMemory  int64                   `json:"freeMemory"`
}

// HealthSummary picks the commonly shown sensors out of the raw health
// table. Missing or non-numeric sensors are nil.
type HealthSummary struct {
	Temperature      *float64          `json:"temperature"`
	Voltage          *float64          `json:"voltage"`
	CPUTemperature   *float64          `json:"cpuTemperature"`
	BoardTemperature *float64          `json:"boardTemperature"`
	Raw              map[string]string `json:"raw"`
}

// PingStats is the server to device round trip. Primary is in
// milliseconds and nil when the device did not answer.
type PingStats struct {
	Primary     *float64           `json:"primary"`
	Device      *models.PingSample `json:"device,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	PrimaryHost string             `json:"primaryHost"`
}

// DefaultIdentity is reported when the device name cannot be read.
const DefaultIdentity = "MikroTik"

// Session is the loop set of one authenticated connection. It is created
// by Start, reconfigured in place and ends with Stop; no loop outlives it.
type Session struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards the fields below and serializes emission, so nothing is
	// written to the client once Stop has returned.
	mu                sync.Mutex
	closed            bool
	loops             map[Feed]*loop
	selectedInterface string
}

type loop struct {
	feed   Feed
	period time.Duration
	ctx    context.Context
	cancel context.CancelFunc
}

func Start(parent context.Context, cfg Config) *Session {
	if cfg.Options.DefaultInterface == "" {
		cfg.Options.DefaultInterface = "ether1"
	}
	if cfg.Options.EchoTimeout <= 0 {
		cfg.Options.EchoTimeout = time.Second
	}
	if cfg.Options.LogLimit <= 0 {
		cfg.Options.LogLimit = 20
	}
	cfg.Options.Bounds = cfg.Options.Bounds.OrDefault()

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		cfg:               cfg,
		ctx:               ctx,
		cancel:            cancel,
		loops:             make(map[Feed]*loop, len(Feeds)),
		selectedInterface: cfg.Options.DefaultInterface,
	}

	s.mu.Lock()
	// Stored periods are clamped into the current bounds.
	for _, f := range Feeds {
		s.startLoop(f, periodOf(cfg.Intervals, f, cfg.Options.Bounds), cfg.Options.EmitOnStart)
	}
	s.mu.Unlock()

	slog.Info("Telemetry session started", "identity", cfg.Credential.Identity())
	return s
}

// startLoop must be called with s.mu held.
func (s *Session) startLoop(feed Feed, period time.Duration, immediate bool) {
	if period <= 0 {
		period = time.Second
	}
	ctx, cancel := context.WithCancel(s.ctx)
	l := &loop{feed: feed, period: period, ctx: ctx, cancel: cancel}
	s.loops[feed] = l

	s.wg.Add(1)
	go s.run(l, immediate)
}

// run ticks one feed. Ticks of the same feed never overlap: a slow tick
// delays the next one.
func (s *Session) run(l *loop, immediate bool) {
	defer s.wg.Done()

	if immediate {
		s.fire(l)
	}

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			s.fire(l)
		}
	}
}

func (s *Session) fire(l *loop) {
	if l.ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Telemetry tick panicked", "feed", l.feed, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	event, payload, err := s.tick(l.ctx, l.feed)
	if err != nil {
		slog.Debug("Telemetry tick failed", "feed", l.feed, "error", err)
		return
	}
	s.emit(l, event, payload)
}

func (s *Session) tick(ctx context.Context, feed Feed) (string, any, error) {
	cred := s.cfg.Credential
	dev := s.cfg.Device

	switch feed {
	case FeedRealtime:
		return EventRealtimeStats, s.realtimeStats(ctx), nil
	case FeedDHCP:
		return EventDHCPLeases, dev.ListDHCPLeases(ctx, cred), nil
	case FeedPing:
		return EventPingLatency, s.pingStats(ctx), nil
	case FeedLog:
		return EventSystemLogs, dev.ListLogs(ctx, cred, s.cfg.Options.LogLimit), nil
	case FeedInterface:
		return EventInterfaceStatus, dev.ListInterfaces(ctx, cred), nil
	case FeedNodeMonitor:
		if s.cfg.Nodes == nil {
			return "", nil, fmt.Errorf("node monitor not configured")
		}
		nodes, err := s.cfg.Nodes.Tick(ctx)
		if err != nil {
			// Ping results are still valid when only the save failed.
			slog.Warn("Node monitor tick error", "error", err)
		}
		if nodes == nil {
			nodes = []models.Node{}
		}
		return EventNodeStats, nodes, nil
	}
	return "", nil, fmt.Errorf("unknown feed %q", feed)
}

func (s *Session) realtimeStats(ctx context.Context) RealtimeStats {
	cred := s.cfg.Credential
	dev := s.cfg.Device
	iface := s.SelectedInterface()

	res := dev.SystemResources(ctx, cred)
	stats := RealtimeStats{
		Resources: res,
		Bandwidth: dev.SampleTraffic(ctx, cred, iface),
		Health:    summarizeHealth(dev.SystemHealth(ctx, cred)),
		Timestamp: time.Now(),
		Identity:  DefaultIdentity,
		User:      cred.User,
		Interface: iface,
	}
	if id := dev.SystemIdentity(ctx, cred); id != nil && id.Name != "" {
		stats.Identity = id.Name
	}
	if res != nil {
		stats.Uptime = res.Uptime
		stats.Model = res.BoardName
		stats.Version = res.Version
		stats.CPUUsage = res.CPULoad
		stats.TotalMemory = res.TotalMemory
		stats.FreeMemory = res.FreeMemory
	}
	return stats
}

// summarizeHealth reduces the sensor table; the first sensor name found
// wins for each field.
func summarizeHealth(samples []models.HealthSample) HealthSummary {
	raw := make(map[string]string, len(samples))
	for _, hs := range samples {
		raw[hs.Name] = hs.Value
	}
	first := func(names ...string) *float64 {
		for _, n := range names {
			v, ok := raw[n]
			if !ok {
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return &f
			}
		}
		return nil
	}
	return HealthSummary{
		Temperature:      first("temperature", "cpu-temperature", "cpu-temp", "temp", "board-temperature"),
		Voltage:          first("voltage", "active-voltage"),
		CPUTemperature:   first("cpu-temperature"),
		BoardTemperature: first("board-temperature"),
		Raw:              raw,
	}
}

func (s *Session) pingStats(ctx context.Context) PingStats {
	host := s.cfg.Credential.Host
	stats := PingStats{PrimaryHost: host, Timestamp: time.Now()}
	if s.cfg.Meter != nil {
		rtt, err := s.cfg.Meter.Measure(ctx, host, s.cfg.Options.EchoTimeout)
		if err != nil {
			slog.Debug("Device did not answer ping", "host", host, "error", err)
		} else {
			ms := float64(rtt) / float64(time.Millisecond)
			stats.Primary = &ms
		}
	}
	if target := s.cfg.Options.PingTarget; target != "" {
		sample := s.cfg.Device.Ping(ctx, s.cfg.Credential, target)
		stats.Device = &sample
	}
	return stats
}

// emit pushes a feed result unless the session or that loop has ended.
func (s *Session) emit(l *loop, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || l.ctx.Err() != nil {
		return
	}
	if err := s.cfg.Emitter.Emit(event, payload); err != nil {
		slog.Debug("Telemetry emit failed", "event", event, "error", err)
	}
}

// Send pushes a non-feed event such as an acknowledgement.
func (s *Session) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	return s.cfg.Emitter.Emit(event, payload)
}

func (s *Session) SelectedInterface() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedInterface
}

// SetInterface changes the bandwidth interface; the next realtime tick
// picks it up.
func (s *Session) SetInterface(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.selectedInterface = name
}

// UpdateIntervals swaps the loops whose period changes. Keys are the
// preference field names (pingInterval, ...), values milliseconds. Unknown
// keys and values outside the session bounds are ignored. It returns the
// feeds that changed and is a no-op once the session is stopped.
func (s *Session) UpdateIntervals(partial map[string]int) map[Feed]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	changed := make(map[Feed]time.Duration)
	for key, ms := range partial {
		feed, ok := feedByKey[key]
		if !ok || s.cfg.Options.Bounds.Check(key, ms) != nil {
			continue
		}
		period := time.Duration(ms) * time.Millisecond
		if l := s.loops[feed]; l != nil {
			if l.period == period {
				continue
			}
			l.cancel()
		}
		s.startLoop(feed, period, false)
		changed[feed] = period
	}
	if len(changed) > 0 {
		slog.Debug("Telemetry intervals updated", "identity", s.cfg.Credential.Identity(), "changed", len(changed))
	}
	return changed
}

// Intervals reports the current period of every feed.
func (s *Session) Intervals() map[Feed]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Feed]time.Duration, len(s.loops))
	for f, l := range s.loops {
		out[f] = l.period
	}
	return out
}

// Stop cancels every loop. After it returns nothing more is emitted, even
// for ticks still in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, l := range s.loops {
		l.cancel()
	}
	s.cancel()
	s.mu.Unlock()
	slog.Info("Telemetry session stopped", "identity", s.cfg.Credential.Identity())
}

// Wait blocks until every loop goroutine has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

var feedByKey = map[string]Feed{
	"realtimeInterval":    FeedRealtime,
	"dhcpInterval":        FeedDHCP,
	"pingInterval":        FeedPing,
	"logInterval":         FeedLog,
	"interfaceInterval":   FeedInterface,
	"nodeMonitorInterval": FeedNodeMonitor,
}

// Bounds reports the accepted period range.
func (s *Session) Bounds() models.IntervalBounds {
	return s.cfg.Options.Bounds
}

func periodOf(p models.Preferences, f Feed, bounds models.IntervalBounds) time.Duration {
	var ms int
	switch f {
	case FeedRealtime:
		ms = p.RealtimeInterval
	case FeedDHCP:
		ms = p.DHCPInterval
	case FeedPing:
		ms = p.PingInterval
	case FeedLog:
		ms = p.LogInterval
	case FeedInterface:
		ms = p.InterfaceInterval
	case FeedNodeMonitor:
		ms = p.NodeMonitorInterval
	}
	if ms <= 0 {
		return 0
	}
	return time.Duration(bounds.Clamp(ms)) * time.Millisecond
}

// preferencesFrom turns an update-intervals payload into a partial
// Preferences value.
func preferencesFrom(partial map[string]int) models.Preferences {
	var p models.Preferences
	for key, ms := range partial {
		if ms <= 0 {
			continue
		}
		switch feedByKey[key] {
		case FeedRealtime:
			p.RealtimeInterval = ms
		case FeedDHCP:
			p.DHCPInterval = ms
		case FeedPing:
			p.PingInterval = ms
		case FeedLog:
			p.LogInterval = ms
		case FeedInterface:
			p.InterfaceInterval = ms
		case FeedNodeMonitor:
			p.NodeMonitorInterval = ms
		}
	}
	return p
}
