package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const nodesKey = "nodes"

var (
	ErrDuplicateIP  = errors.New("a node with this IP already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidInput = errors.New("invalid input")
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,62}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,62}[A-Za-z0-9])?)*$`)

// NodeMonitor owns the process-wide registry of user-defined ping targets.
// All mutations and saves happen under one lock, so the backing store sees
// serialized writes.
type NodeMonitor struct {
	mu      sync.Mutex
	kv      store.KV
	meter   LatencyMeter
	timeout time.Duration
	nodes   []models.Node
	now     func() time.Time
}

func NewNodeMonitor(ctx context.Context, kv store.KV, meter LatencyMeter, timeout time.Duration) (*NodeMonitor, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	m := &NodeMonitor{
		kv:      kv,
		meter:   meter,
		timeout: timeout,
		now:     time.Now,
	}

	var nodes []models.Node
	if _, err := kv.Load(ctx, nodesKey, &nodes); err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	m.nodes = nodes
	slog.Info("Node monitor loaded", "nodes", len(nodes))
	return m, nil
}

func (m *NodeMonitor) List() []models.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *NodeMonitor) Add(ctx context.Context, ip, name string) (models.Node, error) {
	ip, name, err := normalizeNode(ip, name)
	if err != nil {
		return models.Node{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexByIP(ip) >= 0 {
		return models.Node{}, ErrDuplicateIP
	}
	node := models.Node{
		ID:     uuid.NewString(),
		IP:     ip,
		Name:   name,
		Status: models.NodePending,
	}
	m.nodes = append(m.nodes, node)
	if err := m.save(ctx); err != nil {
		m.nodes = m.nodes[:len(m.nodes)-1]
		return models.Node{}, err
	}
	slog.Info("Node added", "ip", ip, "name", name)
	return node, nil
}

// Remove deletes every node with the given ip.
func (m *NodeMonitor) Remove(ctx context.Context, ip string) error {
	ip = strings.TrimSpace(ip)

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.nodes
	kept := make([]models.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.IP != ip {
			kept = append(kept, n)
		}
	}
	m.nodes = kept
	if err := m.save(ctx); err != nil {
		m.nodes = prev
		return err
	}
	slog.Info("Node removed", "ip", ip, "removed", len(prev)-len(kept))
	return nil
}

func (m *NodeMonitor) Edit(ctx context.Context, id, ip, name string) (models.Node, error) {
	ip, name, err := normalizeNode(ip, name)
	if err != nil {
		return models.Node{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, n := range m.nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Node{}, ErrNodeNotFound
	}
	if other := m.indexByIP(ip); other >= 0 && other != idx {
		return models.Node{}, ErrDuplicateIP
	}

	prev := m.nodes[idx]
	updated := prev
	updated.IP = ip
	updated.Name = name
	if prev.IP != ip {
		updated.Status = models.NodePending
		updated.Latency = nil
		updated.LastChecked = nil
	}
	m.nodes[idx] = updated
	if err := m.save(ctx); err != nil {
		m.nodes[idx] = prev
		return models.Node{}, err
	}
	return updated, nil
}

// Tick pings every node concurrently, folds the results back and returns
// the full updated collection.
func (m *NodeMonitor) Tick(ctx context.Context) ([]models.Node, error) {
	m.mu.Lock()
	targets := m.snapshot()
	m.mu.Unlock()

	type result struct {
		latency *float64
		status  models.NodeStatus
	}
	results := make([]result, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, n := range targets {
		g.Go(func() error {
			rtt, err := m.meter.Measure(gctx, n.IP, m.timeout)
			if err != nil {
				results[i] = result{status: models.NodeOffline}
				return nil
			}
			ms := float64(rtt.Microseconds()) / 1000
			results[i] = result{status: models.NodeOnline, latency: &ms}
			return nil
		})
	}
	g.Wait()

	checked := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[string]int, len(m.nodes))
	for i, n := range m.nodes {
		byID[n.ID] = i
	}
	for i, t := range targets {
		idx, ok := byID[t.ID]
		// skip nodes removed or re-addressed while probing
		if !ok || m.nodes[idx].IP != t.IP {
			continue
		}
		m.nodes[idx].Status = results[i].status
		m.nodes[idx].Latency = results[i].latency
		ts := checked
		m.nodes[idx].LastChecked = &ts
	}
	if err := m.save(ctx); err != nil {
		return m.snapshot(), err
	}
	return m.snapshot(), nil
}

func (m *NodeMonitor) indexByIP(ip string) int {
	for i, n := range m.nodes {
		if n.IP == ip {
			return i
		}
	}
	return -1
}

func (m *NodeMonitor) snapshot() []models.Node {
	out := make([]models.Node, len(m.nodes))
	for i, n := range m.nodes {
		cp := n
		if n.Latency != nil {
			v := *n.Latency
			cp.Latency = &v
		}
		if n.LastChecked != nil {
			v := *n.LastChecked
			cp.LastChecked = &v
		}
		out[i] = cp
	}
	return out
}

func (m *NodeMonitor) save(ctx context.Context) error {
	if err := m.kv.Save(ctx, nodesKey, m.nodes); err != nil {
		slog.Error("Failed to save nodes", "error", err)
		return fmt.Errorf("saving nodes: %w", err)
	}
	return nil
}

func normalizeNode(ip, name string) (string, string, error) {
	ip = strings.TrimSpace(ip)
	name = strings.TrimSpace(name)
	if ip == "" {
		return "", "", fmt.Errorf("%w: ip is required", ErrInvalidInput)
	}
	parsed := net.ParseIP(ip)
	if parsed == nil && !hostnamePattern.MatchString(ip) {
		return "", "", fmt.Errorf("%w: %q is not an IP address or hostname", ErrInvalidInput, ip)
	}
	// The meter speaks ICMPv4 only.
	if parsed != nil && parsed.To4() == nil {
		return "", "", fmt.Errorf("%w: IPv6 address %s is not supported", ErrInvalidInput, ip)
	}
	if name == "" {
		name = ip
	}
	if len(name) > 64 {
		return "", "", fmt.Errorf("%w: name too long", ErrInvalidInput)
	}
	return ip, name, nil
}
