package routeros

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu      sync.Mutex
	closed  bool
	execErr error
	delay   time.Duration
	calls   int
}

func (c *fakeClient) Execute(command string, args ...string) ([]map[string]string, error) {
	c.mu.Lock()
	c.calls++
	err := c.execErr
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return []map[string]string{{"command": command}}, nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	dials   atomic.Int32
	delay   time.Duration
	err     error
	clients []*fakeClient
	mu      sync.Mutex
}

func (d *fakeDialer) Dial(ctx context.Context, cred Credential) (Client, error) {
	d.dials.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeClient{}
	d.clients = append(d.clients, c)
	return c, nil
}

var testCred = Credential{Host: "192.168.88.1", User: "admin", Password: "secret", Port: 8728}

func TestCredentialKey(t *testing.T) {
	assert.Equal(t, "admin@192.168.88.1:8728", testCred.Key())
	assert.Equal(t, "192.168.88.1:admin", testCred.Identity())

	noPort := Credential{Host: "10.0.0.1", User: "ops"}
	assert.Equal(t, "ops@10.0.0.1:8728", noPort.Key())

	other := testCred
	other.Password = "different"
	assert.Equal(t, testCred.Key(), other.Key())
}

func TestAcquireInvalidCredential(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	_, err := r.Acquire(context.Background(), Credential{Host: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = r.Acquire(context.Background(), Credential{User: "admin"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int32(0), d.dials.Load())
}

func TestAcquireReusesConnection(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	c1, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	c2, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int32(1), d.dials.Load())
}

func TestAcquireConcurrentSingleDial(t *testing.T) {
	d := &fakeDialer{delay: 50 * time.Millisecond}
	r := NewRegistry(d, RegistryConfig{})

	const callers = 10
	conns := make([]*Conn, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = r.Acquire(context.Background(), testCred)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, conns[0], conns[i])
	}
	assert.Equal(t, int32(1), d.dials.Load())
	assert.Equal(t, 1, r.Stats().Live)
}

func TestAcquireCooldown(t *testing.T) {
	d := &fakeDialer{err: errors.New("cannot log in")}
	r := NewRegistry(d, RegistryConfig{Cooldown: 30 * time.Second})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Acquire(context.Background(), testCred)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailure)
	assert.Contains(t, err.Error(), "cannot log in")
	assert.Equal(t, int32(1), d.dials.Load())

	now = now.Add(10 * time.Second)
	_, err = r.Acquire(context.Background(), testCred)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCooldownActive)
	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, "cannot log in", cd.Message)
	assert.Equal(t, int32(1), d.dials.Load(), "no dial inside the cooldown window")
	assert.Equal(t, 1, r.Stats().Failed)

	// Past the window a new attempt is made and success clears the record.
	now = now.Add(21 * time.Second)
	d.mu.Lock()
	d.err = nil
	d.mu.Unlock()
	conn, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	assert.NotNil(t, conn)
	assert.Equal(t, int32(2), d.dials.Load())
	assert.Equal(t, 0, r.Stats().Failed)
}

func TestAcquireWaitersSeeFailure(t *testing.T) {
	d := &fakeDialer{delay: 30 * time.Millisecond, err: errors.New("timeout")}
	r := NewRegistry(d, RegistryConfig{})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Acquire(context.Background(), testCred)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), d.dials.Load())
	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConnectFailure) || errors.Is(err, ErrCooldownActive))
	}
}

func TestAcquireWaiterContextCancel(t *testing.T) {
	d := &fakeDialer{delay: 200 * time.Millisecond}
	r := NewRegistry(d, RegistryConfig{})

	go r.Acquire(context.Background(), testCred)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Acquire(ctx, testCred)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBrokenConnectionEvicted(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	conn, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)

	d.clients[0].mu.Lock()
	d.clients[0].execErr = ErrConnectionBroken
	d.clients[0].mu.Unlock()

	_, err = conn.Execute(context.Background(), "/system/identity/print")
	require.ErrorIs(t, err, ErrConnectionBroken)
	assert.True(t, d.clients[0].isClosed())

	conn2, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	assert.NotSame(t, conn, conn2)
	assert.Equal(t, int32(2), d.dials.Load())
}

func TestDeviceErrorKeepsConnection(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	conn, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	d.clients[0].execErr = errors.New("from RouterOS device: no such item")

	_, err = conn.Execute(context.Background(), "/ip/firewall/address-list/remove", "numbers=*1")
	require.Error(t, err)
	assert.False(t, d.clients[0].isClosed())

	again, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	assert.Same(t, conn, again)
}

func TestCallTimeoutEvicts(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{CallTimeout: 20 * time.Millisecond})

	conn, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	d.clients[0].delay = 100 * time.Millisecond

	_, err = conn.Execute(context.Background(), "/interface/print")
	require.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, err, ErrCallTimeout)
	assert.False(t, NotSent(err))
	assert.Equal(t, 0, r.Stats().Live)
}

func TestClosedConnReportsNotSent(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	conn, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	r.Release(testCred)

	_, err = conn.Execute(context.Background(), "/system/reboot")
	require.ErrorIs(t, err, ErrConnectionBroken)
	assert.True(t, NotSent(err))
	assert.Equal(t, 0, d.clients[0].calls)
}

func TestNotSent(t *testing.T) {
	writeErr := &net.OpError{Op: "write", Net: "tcp", Err: syscall.EPIPE}
	readErr := &net.OpError{Op: "read", Net: "tcp", Err: io.EOF}

	assert.True(t, NotSent(fmt.Errorf("%w: %w", ErrConnectionBroken, writeErr)))
	assert.True(t, NotSent(fmt.Errorf("%w: %w", ErrConnectionBroken, ErrNotSent)))
	assert.False(t, NotSent(fmt.Errorf("%w: %w", ErrConnectionBroken, readErr)))
	assert.False(t, NotSent(fmt.Errorf("%w: EOF", ErrConnectionBroken)))
	assert.False(t, NotSent(nil))
}

func TestRelease(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d, RegistryConfig{})

	_, err := r.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	r.Release(testCred)
	assert.True(t, d.clients[0].isClosed())
	assert.Equal(t, 0, r.Stats().Live)

	// Releasing an unknown key is a no-op.
	r.Release(Credential{Host: "10.9.9.9", User: "nobody"})
}

func TestFormatWord(t *testing.T) {
	assert.Equal(t, "=name=ether1", formatWord("name=ether1"))
	assert.Equal(t, "?disabled=false", formatWord("?disabled=false"))
	assert.Equal(t, "=.proplist=name", formatWord("=.proplist=name"))
}
