package models

import "time"

type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeOnline  NodeStatus = "online"
	NodeOffline NodeStatus = "offline"
)

// Node is a user-defined reachability target, shared by all sessions.
type Node struct {
	ID          string     `json:"id"`
	IP          string     `json:"ip"`
	Name        string     `json:"name"`
	Status      NodeStatus `json:"status"`
	Latency     *float64   `json:"latency"` // ms
	LastChecked *time.Time `json:"lastChecked"`
}
