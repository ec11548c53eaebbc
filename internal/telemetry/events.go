package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Client events.
const (
	EventChangeInterface = "change-bandwidth-interface"
	EventUpdateIntervals = "update-intervals"
	EventAddNode         = "add-node"
	EventRemoveNode      = "remove-node"
	EventEditNode        = "edit-node"

	EventAck = "ack"
)

var ErrUnknownEvent = errors.New("unknown event")

// Message is the envelope used in both directions on the socket.
type Message struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Ack struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type nodePayload struct {
	ID   string `json:"id"`
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// Handle applies one client event to the session and returns the ack to
// send back. Node mutations also push a fresh node-stats event.
func (s *Session) Handle(ctx context.Context, msg Message) Ack {
	ack := Ack{ID: msg.ID, Event: msg.Event}

	data, err := s.dispatch(ctx, msg)
	if err != nil {
		slog.Debug("Client event rejected", "event", msg.Event, "error", err)
		ack.Error = err.Error()
		return ack
	}
	ack.OK = true
	ack.Data = data
	return ack
}

func (s *Session) dispatch(ctx context.Context, msg Message) (any, error) {
	switch msg.Event {
	case EventChangeInterface:
		name, err := stringOrField(msg.Data, "interface", "name")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("interface name is required")
		}
		s.SetInterface(name)
		return map[string]string{"interface": name}, nil

	case EventUpdateIntervals:
		var partial map[string]int
		if err := json.Unmarshal(msg.Data, &partial); err != nil {
			return nil, fmt.Errorf("invalid intervals: %w", err)
		}
		for key, ms := range partial {
			if _, ok := feedByKey[key]; !ok {
				return nil, fmt.Errorf("unknown interval %q", key)
			}
			if err := s.cfg.Options.Bounds.Check(key, ms); err != nil {
				return nil, err
			}
		}
		s.UpdateIntervals(partial)
		if s.cfg.Preferences == nil {
			return partial, nil
		}
		saved, err := s.cfg.Preferences.Update(ctx, s.cfg.Credential.Identity(), preferencesFrom(partial))
		if err != nil {
			// The running session keeps the new periods either way.
			slog.Warn("Failed to persist intervals", "identity", s.cfg.Credential.Identity(), "error", err)
			return partial, nil
		}
		return saved, nil

	case EventAddNode, EventRemoveNode, EventEditNode:
		if s.cfg.Nodes == nil {
			return nil, fmt.Errorf("node monitor not configured")
		}
		result, err := s.mutateNodes(ctx, msg)
		if err != nil {
			return nil, err
		}
		// Best effort: a closed session simply drops it.
		_ = s.Send(EventNodeStats, s.cfg.Nodes.List())
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, msg.Event)
}

func (s *Session) mutateNodes(ctx context.Context, msg Message) (any, error) {
	if msg.Event == EventRemoveNode {
		ip, err := stringOrField(msg.Data, "ip")
		if err != nil {
			return nil, err
		}
		return map[string]string{"ip": ip}, s.cfg.Nodes.Remove(ctx, ip)
	}

	var p nodePayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid node: %w", err)
	}
	if msg.Event == EventAddNode {
		return s.cfg.Nodes.Add(ctx, p.IP, p.Name)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("node id is required")
	}
	return s.cfg.Nodes.Edit(ctx, p.ID, p.IP, p.Name)
}

// stringOrField accepts either a bare JSON string or an object carrying the
// value under one of the given keys.
func stringOrField(raw json.RawMessage, keys ...string) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str), nil
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("missing %s", keys[0])
}
