package device

import (
	"errors"
	"strings"

	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknown          = errors.New("device error")
)

// Error is a classified failure of a write operation. Kind is one of the
// sentinel errors above; Message is the device's own text.
type Error struct {
	Kind    error
	Op      string
	Message string
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

type InputError struct {
	Field string
	Value string
}

func (e *InputError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// classify maps an upstream failure onto the error taxonomy. Registry and
// input errors already carry a kind and pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, routeros.ErrInvalidCredential) ||
		errors.Is(err, routeros.ErrCooldownActive) ||
		errors.Is(err, routeros.ErrConnectFailure) ||
		errors.Is(err, ErrInvalidInput) {
		return err
	}

	msg := strings.ToLower(err.Error())
	kind := ErrUnknown
	switch {
	case strings.Contains(msg, "not enough permissions"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "access denied"):
		kind = ErrPermissionDenied
	case strings.Contains(msg, "already have"),
		strings.Contains(msg, "already exists"),
		strings.Contains(msg, "duplicate"):
		kind = ErrConflict
	case strings.Contains(msg, "no such item"),
		strings.Contains(msg, "no such"),
		strings.Contains(msg, "not found"):
		kind = ErrNotFound
	}
	return &Error{Kind: kind, Op: op, Message: err.Error()}
}
