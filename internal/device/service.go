package device

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

type Acquirer interface {
	Acquire(ctx context.Context, cred routeros.Credential) (*routeros.Conn, error)
}

// Service wraps the device RPC per data domain. Read calls that feed the
// dashboard never fail; write calls return classified errors.
type Service struct {
	acquirer Acquirer
	names    *listNameCache
	now      func() time.Time
}

func NewService(acquirer Acquirer) *Service {
	return &Service{
		acquirer: acquirer,
		names:    newListNameCache(),
		now:      time.Now,
	}
}

func (s *Service) run(ctx context.Context, cred routeros.Credential, command string, args ...string) ([]Row, error) {
	conn, err := s.acquirer.Acquire(ctx, cred)
	if err != nil {
		return nil, err
	}
	return conn.Execute(ctx, command, args...)
}

// write runs a mutating command and classifies any failure.
func (s *Service) write(ctx context.Context, op string, cred routeros.Credential, command string, args ...string) ([]Row, error) {
	rows, err := s.run(ctx, cred, command, args...)
	if err != nil {
		slog.Warn("Device write failed", "op", op, "host", cred.Host, "error", err)
		return nil, classify(op, err)
	}
	return rows, nil
}

// listNameCache keeps the distinct address-list names per device. Entries
// never expire; any address-list write invalidates the whole cache.
type listNameCache struct {
	mu    sync.RWMutex
	names map[string][]string
}

func newListNameCache() *listNameCache {
	return &listNameCache{names: make(map[string][]string)}
}

func (c *listNameCache) get(key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.names[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, true
}

func (c *listNameCache) put(key string, names []string) {
	stored := make([]string, len(names))
	copy(stored, names)
	sort.Strings(stored)
	c.mu.Lock()
	c.names[key] = stored
	c.mu.Unlock()
}

func (c *listNameCache) invalidate() {
	c.mu.Lock()
	c.names = make(map[string][]string)
	c.mu.Unlock()
}
