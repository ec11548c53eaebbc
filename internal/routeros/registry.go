package routeros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCooldown    = 30 * time.Second
	DefaultDialTimeout = 5 * time.Second
	DefaultCallTimeout = 10 * time.Second
)

type RegistryConfig struct {
	Cooldown    time.Duration
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// Registry owns at most one live connection per credential key. Connection
// attempts for the same key are serialized and failures start a cooldown.
type Registry struct {
	dialer Dialer
	cfg    RegistryConfig
	now    func() time.Time

	mu    sync.Mutex // guards slots only
	slots map[string]*slot
}

type slot struct {
	mu      sync.Mutex
	conn    *Conn
	pending chan struct{} // closed when the in-flight attempt finishes
	failure *failure
}

type failure struct {
	at      time.Time
	message string
}

type RegistryStats struct {
	Live    int `json:"live"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

func NewRegistry(dialer Dialer, cfg RegistryConfig) *Registry {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Registry{
		dialer: dialer,
		cfg:    cfg,
		now:    time.Now,
		slots:  make(map[string]*slot),
	}
}

func (r *Registry) slot(key string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
	}
	return s
}

// Acquire returns the live connection for cred, dialing one if needed.
func (r *Registry) Acquire(ctx context.Context, cred Credential) (*Conn, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	key := cred.Key()
	s := r.slot(key)

	for {
		s.mu.Lock()
		if s.failure != nil && r.now().Sub(s.failure.at) < r.cfg.Cooldown {
			msg := s.failure.message
			s.mu.Unlock()
			return nil, &CooldownError{Key: key, Message: msg}
		}
		if s.conn != nil && !s.conn.isClosed() {
			conn := s.conn
			s.mu.Unlock()
			return conn, nil
		}
		if s.pending != nil {
			wait := s.pending
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		s.pending = done
		s.mu.Unlock()

		return r.connect(ctx, key, cred, s, done)
	}
}

func (r *Registry) connect(ctx context.Context, key string, cred Credential, s *slot, done chan struct{}) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	client, err := r.dialer.Dial(dialCtx, cred)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	defer close(done)

	if err != nil {
		s.failure = &failure{at: r.now(), message: err.Error()}
		slog.Warn("RouterOS connection failed", "key", key, "error", err)
		return nil, &ConnectError{Key: key, Err: err}
	}

	s.failure = nil
	conn := &Conn{
		key:         key,
		client:      client,
		callTimeout: r.cfg.CallTimeout,
	}
	conn.onBroken = func() { r.evict(key, conn) }
	s.conn = conn
	return conn, nil
}

// evict drops conn from its slot if it is still the current one.
func (r *Registry) evict(key string, conn *Conn) {
	s := r.slot(key)
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.close()
	slog.Info("RouterOS connection evicted", "key", key)
}

// Release closes and evicts the connection for cred.
func (r *Registry) Release(cred Credential) {
	key := cred.Key()
	r.mu.Lock()
	s, ok := r.slots[key]
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.close()
		slog.Info("RouterOS connection released", "key", key)
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	slots := make(map[string]*slot, len(r.slots))
	for k, s := range r.slots {
		slots[k] = s
	}
	r.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.conn != nil {
			s.conn.close()
			s.conn = nil
		}
		s.mu.Unlock()
	}
	slog.Info("All RouterOS connections closed")
}

func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	slots := make([]*slot, 0, len(r.slots))
	for _, s := range r.slots {
		slots = append(slots, s)
	}
	r.mu.Unlock()

	var st RegistryStats
	now := r.now()
	for _, s := range slots {
		s.mu.Lock()
		if s.conn != nil && !s.conn.isClosed() {
			st.Live++
		}
		if s.pending != nil {
			st.Pending++
		}
		if s.failure != nil && now.Sub(s.failure.at) < r.cfg.Cooldown {
			st.Failed++
		}
		s.mu.Unlock()
	}
	return st
}

// Conn is a live device connection handed out by the Registry. Calls on one
// Conn are serialized.
type Conn struct {
	key         string
	client      Client
	callTimeout time.Duration
	onBroken    func()

	callMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func (c *Conn) Key() string { return c.key }

// Execute runs one command. A transport error or a call exceeding the call
// timeout evicts the connection.
func (c *Conn) Execute(ctx context.Context, command string, args ...string) ([]map[string]string, error) {
	if c.isClosed() {
		return nil, fmt.Errorf("%w: %w: %s closed", ErrConnectionBroken, ErrNotSent, c.key)
	}

	type result struct {
		rows []map[string]string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c.callMu.Lock()
		defer c.callMu.Unlock()
		rows, err := c.client.Execute(command, args...)
		ch <- result{rows: rows, err: err}
	}()

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil && errors.Is(res.err, ErrConnectionBroken) {
			c.broken()
		}
		return res.rows, res.err
	case <-timer.C:
		c.broken()
		return nil, fmt.Errorf("%w: %w: %s after %s", ErrConnectionBroken, ErrCallTimeout, command, c.callTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) broken() {
	if c.onBroken != nil {
		c.onBroken()
		return
	}
	c.close()
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.client.Close()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
