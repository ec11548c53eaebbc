package routeros

import (
	"errors"
	"net"
	"syscall"
)

var (
	ErrInvalidCredential = errors.New("host and user are required")
	ErrCooldownActive    = errors.New("connection cooldown active")
	ErrConnectFailure    = errors.New("failed to connect to device")

	// ErrConnectionBroken marks transport-level failures. A Conn that sees
	// one is evicted from the registry.
	ErrConnectionBroken = errors.New("device connection broken")

	// ErrNotSent accompanies ErrConnectionBroken when the command never left
	// this process: the Conn was already closed or the write itself failed.
	ErrNotSent = errors.New("command not sent")

	ErrCallTimeout = errors.New("call timed out")
)

// CooldownError is returned while a recent failure for the same key is
// still inside the cooldown window.
type CooldownError struct {
	Key     string
	Message string
}

func (e *CooldownError) Error() string {
	return "connection cooldown active for " + e.Key + ": " + e.Message
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// ConnectError wraps the cause of a failed dial.
type ConnectError struct {
	Key string
	Err error
}

func (e *ConnectError) Error() string {
	return "failed to connect " + e.Key + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() []error { return []error{ErrConnectFailure, e.Err} }

// NotSent reports whether err proves the device never received the command.
func NotSent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotSent) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "write"
}
