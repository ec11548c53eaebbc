package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	name    string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{name: event, payload: payload})
	return nil
}

func (e *recordingEmitter) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.name == name {
			n++
		}
	}
	return n
}

func (e *recordingEmitter) last(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].name == name {
			return e.events[i].payload, true
		}
	}
	return nil, false
}

type fakeDevice struct {
	mu        sync.Mutex
	pings     int
	dhcpPanic bool
	health    []models.HealthSample
	identity  string
}

func (d *fakeDevice) SystemResources(ctx context.Context, cred routeros.Credential) *models.SystemResources {
	return &models.SystemResources{
		Version: "7.14", BoardName: "RB5009", Uptime: "1d2h", CPULoad: 12,
		FreeMemory: 512, TotalMemory: 1024,
	}
}

func (d *fakeDevice) SystemHealth(ctx context.Context, cred routeros.Credential) []models.HealthSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.health
}

func (d *fakeDevice) SystemIdentity(ctx context.Context, cred routeros.Credential) *models.SystemIdentity {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.identity == "" {
		return nil
	}
	return &models.SystemIdentity{Name: d.identity}
}

func (d *fakeDevice) SampleTraffic(ctx context.Context, cred routeros.Credential, iface string) models.TrafficSample {
	return models.TrafficSample{Interface: iface, RxBps: 1000}
}

func (d *fakeDevice) ListDHCPLeases(ctx context.Context, cred routeros.Credential) []models.Lease {
	d.mu.Lock()
	boom := d.dhcpPanic
	d.mu.Unlock()
	if boom {
		panic("lease table exploded")
	}
	return []models.Lease{{Address: "192.168.88.10"}}
}

func (d *fakeDevice) Ping(ctx context.Context, cred routeros.Credential, target string) models.PingSample {
	d.mu.Lock()
	d.pings++
	d.mu.Unlock()
	ms := 4.2
	return models.PingSample{Target: target, Latency: &ms}
}

func (d *fakeDevice) ListLogs(ctx context.Context, cred routeros.Credential, limit int) []models.LogEntry {
	return []models.LogEntry{{Message: "login"}}
}

func (d *fakeDevice) ListInterfaces(ctx context.Context, cred routeros.Credential) []models.Interface {
	return []models.Interface{{Name: "ether1", Running: true}}
}

func (d *fakeDevice) pingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pings
}

// fakeMeter answers every round trip with rtt, or fails when down.
type fakeMeter struct {
	mu    sync.Mutex
	hosts []string
	rtt   time.Duration
	down  bool

	// gate, when set, holds every Measure call until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (p *fakeMeter) Measure(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	if p.gate != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts = append(p.hosts, host)
	if p.down {
		return 0, errors.New("request timed out")
	}
	return p.rtt, nil
}

func (p *fakeMeter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}

type fakeNodes struct {
	mu    sync.Mutex
	nodes []models.Node
}

func (n *fakeNodes) Tick(ctx context.Context) ([]models.Node, error) { return n.List(), nil }

func (n *fakeNodes) List() []models.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Node{}, n.nodes...)
}

func (n *fakeNodes) Add(ctx context.Context, ip, name string) (models.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, node := range n.nodes {
		if node.IP == ip {
			return models.Node{}, errors.New("a node with this IP already exists")
		}
	}
	node := models.Node{ID: "n-" + ip, IP: ip, Name: name, Status: models.NodePending}
	n.nodes = append(n.nodes, node)
	return node, nil
}

func (n *fakeNodes) Remove(ctx context.Context, ip string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.nodes[:0]
	for _, node := range n.nodes {
		if node.IP != ip {
			kept = append(kept, node)
		}
	}
	n.nodes = kept
	return nil
}

func (n *fakeNodes) Edit(ctx context.Context, id, ip, name string) (models.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, node := range n.nodes {
		if node.ID == id {
			n.nodes[i].IP = ip
			n.nodes[i].Name = name
			return n.nodes[i], nil
		}
	}
	return models.Node{}, errors.New("node not found")
}

type fakePreferences struct {
	mu       sync.Mutex
	identity string
	saved    models.Preferences
}

func (p *fakePreferences) Update(ctx context.Context, identity string, partial models.Preferences) (models.Preferences, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = identity
	p.saved = p.saved.Merge(partial)
	return p.saved, nil
}

var testCredential = routeros.Credential{Host: "192.168.88.1", User: "admin", Password: "secret"}

// slow leaves every feed effectively idle unless a test overrides it.
func slow() models.Preferences {
	hour := int(time.Hour / time.Millisecond)
	return models.Preferences{
		RealtimeInterval:    hour,
		DHCPInterval:        hour,
		PingInterval:        hour,
		LogInterval:         hour,
		InterfaceInterval:   hour,
		NodeMonitorInterval: hour,
	}
}

// fast lets tests run feeds every few milliseconds.
var fast = models.IntervalBounds{Min: time.Millisecond, Max: time.Hour}

type harness struct {
	session *Session
	emitter *recordingEmitter
	nodes   *fakeNodes
	prefs   *fakePreferences
}

func startSession(t *testing.T, dev *fakeDevice, meter *fakeMeter, intervals models.Preferences, opts Options) harness {
	t.Helper()
	h := harness{emitter: &recordingEmitter{}, nodes: &fakeNodes{}, prefs: &fakePreferences{}}
	h.session = Start(context.Background(), Config{
		Credential:  testCredential,
		Device:      dev,
		Meter:       meter,
		Nodes:       h.nodes,
		Preferences: h.prefs,
		Emitter:     h.emitter,
		Intervals:   intervals,
		Options:     opts,
	})
	t.Cleanup(func() {
		h.session.Stop()
		h.session.Wait()
	})
	return h
}

func TestUpdateIntervalsReplacesTimer(t *testing.T) {
	meter := &fakeMeter{}
	intervals := slow()
	intervals.PingInterval = 10
	s := startSession(t, &fakeDevice{}, meter, intervals, Options{Bounds: fast}).session

	require.Eventually(t, func() bool { return meter.count() >= 3 }, time.Second, 5*time.Millisecond)

	changed := s.UpdateIntervals(map[string]int{"pingInterval": 100})
	assert.Equal(t, map[Feed]time.Duration{FeedPing: 100 * time.Millisecond}, changed)
	assert.Equal(t, 100*time.Millisecond, s.Intervals()[FeedPing])

	before := meter.count()
	time.Sleep(250 * time.Millisecond)
	ticks := meter.count() - before

	// A surviving 10ms timer would add roughly 25 ticks.
	assert.GreaterOrEqual(t, ticks, 1)
	assert.LessOrEqual(t, ticks, 4)
	assert.Len(t, s.Intervals(), len(Feeds))
}

func TestUpdateIntervalsIgnoresUnchangedAndUnknown(t *testing.T) {
	s := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{}).session

	changed := s.UpdateIntervals(map[string]int{
		"pingInterval": int(time.Hour / time.Millisecond),
		"bogus":        100,
		"logInterval":  0,
	})
	assert.Empty(t, changed)
	assert.Equal(t, time.Hour, s.Intervals()[FeedLog])
}

func TestUpdateIntervalsIgnoresOutOfBounds(t *testing.T) {
	s := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{}).session
	assert.Equal(t, models.DefaultIntervalBounds, s.Bounds())

	changed := s.UpdateIntervals(map[string]int{
		"realtimeInterval": 1,
		"pingInterval":     18446744073710,
		"dhcpInterval":     int(time.Hour/time.Millisecond) + 1,
	})
	assert.Empty(t, changed)
	assert.Equal(t, time.Hour, s.Intervals()[FeedRealtime])
	assert.Equal(t, time.Hour, s.Intervals()[FeedPing])
}

func TestStartClampsStoredIntervals(t *testing.T) {
	intervals := slow()
	intervals.RealtimeInterval = 1
	intervals.LogInterval = 10 * int(time.Hour/time.Millisecond)
	s := startSession(t, &fakeDevice{}, &fakeMeter{}, intervals, Options{}).session

	assert.Equal(t, 250*time.Millisecond, s.Intervals()[FeedRealtime])
	assert.Equal(t, time.Hour, s.Intervals()[FeedLog])
}

func TestStopSuppressesInFlightTick(t *testing.T) {
	meter := &fakeMeter{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	intervals := slow()
	intervals.PingInterval = 10
	h := startSession(t, &fakeDevice{}, meter, intervals, Options{Bounds: fast})

	select {
	case <-meter.entered:
	case <-time.After(time.Second):
		t.Fatal("ping tick never started")
	}

	h.session.Stop()
	close(meter.gate)
	h.session.Wait()

	assert.Equal(t, 0, h.emitter.count(EventPingLatency))
	assert.Nil(t, h.session.UpdateIntervals(map[string]int{"pingInterval": 500}))
	assert.Error(t, h.session.Send(EventAck, Ack{}))
}

func TestPanickingFeedDoesNotStopOthers(t *testing.T) {
	dev := &fakeDevice{dhcpPanic: true}
	intervals := slow()
	intervals.DHCPInterval = 10
	intervals.PingInterval = 10
	em := startSession(t, dev, &fakeMeter{}, intervals, Options{Bounds: fast}).emitter

	require.Eventually(t, func() bool { return em.count(EventPingLatency) >= 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, em.count(EventDHCPLeases))

	dev.mu.Lock()
	dev.dhcpPanic = false
	dev.mu.Unlock()

	// The panicking loop itself keeps ticking.
	assert.Eventually(t, func() bool { return em.count(EventDHCPLeases) > 0 }, time.Second, 5*time.Millisecond)
}

func TestPingFeedMeasuresDeviceHost(t *testing.T) {
	meter := &fakeMeter{rtt: 3500 * time.Microsecond}
	dev := &fakeDevice{}
	em := startSession(t, dev, meter, slow(), Options{EmitOnStart: true}).emitter

	require.Eventually(t, func() bool { return em.count(EventPingLatency) == 1 }, time.Second, 5*time.Millisecond)
	payload, _ := em.last(EventPingLatency)
	stats := payload.(PingStats)
	assert.Equal(t, "192.168.88.1", stats.PrimaryHost)
	require.NotNil(t, stats.Primary)
	assert.InDelta(t, 3.5, *stats.Primary, 0.001)
	assert.Nil(t, stats.Device)
	assert.Equal(t, 0, dev.pingCount())

	meter.mu.Lock()
	assert.Equal(t, []string{"192.168.88.1"}, meter.hosts)
	meter.mu.Unlock()
}

func TestPingFeedUnreachableAndDeviceTarget(t *testing.T) {
	meter := &fakeMeter{down: true}
	dev := &fakeDevice{}
	em := startSession(t, dev, meter, slow(), Options{EmitOnStart: true, PingTarget: "1.1.1.1"}).emitter

	require.Eventually(t, func() bool { return em.count(EventPingLatency) == 1 }, time.Second, 5*time.Millisecond)
	payload, _ := em.last(EventPingLatency)
	stats := payload.(PingStats)
	assert.Nil(t, stats.Primary)
	assert.Equal(t, "192.168.88.1", stats.PrimaryHost)
	require.NotNil(t, stats.Device)
	assert.Equal(t, "1.1.1.1", stats.Device.Target)
	assert.Equal(t, 1, dev.pingCount())
}

func TestRealtimeStatsPayload(t *testing.T) {
	dev := &fakeDevice{
		identity: "core-rtr",
		health: []models.HealthSample{
			{Name: "cpu-temperature", Value: "47"},
			{Name: "voltage", Value: "24.1", Unit: "V"},
			{Name: "psu1-state", Value: "ok"},
		},
	}
	em := startSession(t, dev, &fakeMeter{}, slow(), Options{EmitOnStart: true}).emitter

	require.Eventually(t, func() bool { return em.count(EventRealtimeStats) == 1 }, time.Second, 5*time.Millisecond)
	payload, _ := em.last(EventRealtimeStats)
	stats := payload.(RealtimeStats)

	assert.Equal(t, "core-rtr", stats.Identity)
	assert.Equal(t, "admin", stats.User)
	assert.Equal(t, "RB5009", stats.Model)
	assert.Equal(t, "7.14", stats.Version)
	assert.Equal(t, float64(12), stats.CPUUsage)
	assert.Equal(t, int64(1024), stats.TotalMemory)
	assert.Equal(t, int64(512), stats.FreeMemory)
	require.NotNil(t, stats.Health.Temperature)
	assert.Equal(t, 47.0, *stats.Health.Temperature)
	require.NotNil(t, stats.Health.Voltage)
	assert.Equal(t, 24.1, *stats.Health.Voltage)
	assert.Nil(t, stats.Health.BoardTemperature)
	assert.Equal(t, "ok", stats.Health.Raw["psu1-state"])
	assert.Equal(t, "ether1", stats.Bandwidth.Interface)
}

func TestSummarizeHealthWithoutSensors(t *testing.T) {
	h := summarizeHealth(nil)
	assert.Nil(t, h.Temperature)
	assert.Nil(t, h.Voltage)
	assert.Empty(t, h.Raw)

	h = summarizeHealth([]models.HealthSample{{Name: "temperature", Value: "n/a"}, {Name: "board-temperature", Value: "39"}})
	require.NotNil(t, h.Temperature)
	assert.Equal(t, 39.0, *h.Temperature)
}

func TestRealtimeIdentityFallback(t *testing.T) {
	em := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{EmitOnStart: true}).emitter

	require.Eventually(t, func() bool { return em.count(EventRealtimeStats) == 1 }, time.Second, 5*time.Millisecond)
	payload, _ := em.last(EventRealtimeStats)
	assert.Equal(t, DefaultIdentity, payload.(RealtimeStats).Identity)
}

func TestInterfaceChangeAppliesOnNextTick(t *testing.T) {
	intervals := slow()
	intervals.RealtimeInterval = 20
	h := startSession(t, &fakeDevice{}, &fakeMeter{}, intervals, Options{DefaultInterface: "ether1", Bounds: fast})
	s, em := h.session, h.emitter

	require.Eventually(t, func() bool { return em.count(EventRealtimeStats) > 0 }, time.Second, 5*time.Millisecond)
	payload, _ := em.last(EventRealtimeStats)
	assert.Equal(t, "ether1", payload.(RealtimeStats).Interface)

	ack := s.Handle(context.Background(), Message{ID: "1", Event: EventChangeInterface, Data: json.RawMessage(`"ether2"`)})
	require.True(t, ack.OK, ack.Error)
	assert.Equal(t, "1", ack.ID)

	assert.Eventually(t, func() bool {
		payload, _ := em.last(EventRealtimeStats)
		stats := payload.(RealtimeStats)
		return stats.Interface == "ether2" && stats.Bandwidth.Interface == "ether2"
	}, time.Second, 5*time.Millisecond)
}

func TestEmitOnStart(t *testing.T) {
	em := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{EmitOnStart: true}).emitter

	for _, name := range []string{EventRealtimeStats, EventDHCPLeases, EventPingLatency, EventSystemLogs, EventInterfaceStatus, EventNodeStats} {
		assert.Eventually(t, func() bool { return em.count(name) == 1 }, time.Second, 5*time.Millisecond, name)
	}
}

func TestHandleUpdateIntervalsPersists(t *testing.T) {
	h := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{})
	s, prefs := h.session, h.prefs
	ctx := context.Background()

	ack := s.Handle(ctx, Message{Event: EventUpdateIntervals, Data: json.RawMessage(`{"pingInterval":500}`)})
	require.True(t, ack.OK, ack.Error)
	assert.Equal(t, 500*time.Millisecond, s.Intervals()[FeedPing])

	prefs.mu.Lock()
	assert.Equal(t, "192.168.88.1:admin", prefs.identity)
	assert.Equal(t, 500, prefs.saved.PingInterval)
	prefs.mu.Unlock()

	ack = s.Handle(ctx, Message{Event: EventUpdateIntervals, Data: json.RawMessage(`{"pingInterval":-1}`)})
	assert.False(t, ack.OK)
	ack = s.Handle(ctx, Message{Event: EventUpdateIntervals, Data: json.RawMessage(`{"fooInterval":100}`)})
	assert.False(t, ack.OK)
	assert.Equal(t, 500*time.Millisecond, s.Intervals()[FeedPing])
}

func TestHandleUpdateIntervalsRejectsOutOfBounds(t *testing.T) {
	h := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{})
	s, prefs := h.session, h.prefs
	ctx := context.Background()

	for _, raw := range []string{
		`{"pingInterval":18446744073710}`,
		`{"realtimeInterval":1}`,
		`{"realtimeInterval":249}`,
		`{"logInterval":3600001}`,
		`{"dhcpInterval":1000,"realtimeInterval":1}`,
	} {
		ack := s.Handle(ctx, Message{Event: EventUpdateIntervals, Data: json.RawMessage(raw)})
		assert.False(t, ack.OK, raw)
		assert.Contains(t, ack.Error, "must be between", raw)
	}

	// Nothing changed and nothing was stored.
	assert.Equal(t, time.Hour, s.Intervals()[FeedPing])
	assert.Equal(t, time.Hour, s.Intervals()[FeedRealtime])
	assert.Equal(t, time.Hour, s.Intervals()[FeedDHCP])
	prefs.mu.Lock()
	assert.Empty(t, prefs.identity)
	prefs.mu.Unlock()

	ack := s.Handle(ctx, Message{Event: EventUpdateIntervals, Data: json.RawMessage(`{"realtimeInterval":250,"logInterval":3600000}`)})
	require.True(t, ack.OK, ack.Error)
	assert.Equal(t, 250*time.Millisecond, s.Intervals()[FeedRealtime])
}

func TestHandleNodeEvents(t *testing.T) {
	h := startSession(t, &fakeDevice{}, &fakeMeter{}, slow(), Options{})
	s, em, nodes := h.session, h.emitter, h.nodes
	ctx := context.Background()
	ack := s.Handle(ctx, Message{Event: EventAddNode, Data: json.RawMessage(`{"ip":"10.0.0.5","name":"nas"}`)})
	require.True(t, ack.OK, ack.Error)
	added := ack.Data.(models.Node)
	assert.Equal(t, "10.0.0.5", added.IP)
	assert.Equal(t, 1, em.count(EventNodeStats))

	ack = s.Handle(ctx, Message{Event: EventAddNode, Data: json.RawMessage(`{"ip":"10.0.0.5","name":"dup"}`)})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "already exists")

	ack = s.Handle(ctx, Message{Event: EventEditNode, Data: json.RawMessage(`{"id":"` + added.ID + `","ip":"10.0.0.6","name":"nas"}`)})
	require.True(t, ack.OK, ack.Error)
	assert.Equal(t, "10.0.0.6", nodes.List()[0].IP)

	ack = s.Handle(ctx, Message{Event: EventRemoveNode, Data: json.RawMessage(`"10.0.0.6"`)})
	require.True(t, ack.OK, ack.Error)
	assert.Empty(t, nodes.List())

	ack = s.Handle(ctx, Message{Event: "format-disk"})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "unknown event")
}

func TestStringOrField(t *testing.T) {
	v, err := stringOrField(json.RawMessage(`" ether3 "`), "interface")
	require.NoError(t, err)
	assert.Equal(t, "ether3", v)

	v, err = stringOrField(json.RawMessage(`{"name":"bridge"}`), "interface", "name")
	require.NoError(t, err)
	assert.Equal(t, "bridge", v)

	_, err = stringOrField(json.RawMessage(`{"other":"x"}`), "interface")
	assert.Error(t, err)
}
