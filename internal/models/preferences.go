package models

import (
	"fmt"
	"time"
)

// DefaultIntervalBounds limits how often a feed may poll the device.
var DefaultIntervalBounds = IntervalBounds{Min: 250 * time.Millisecond, Max: time.Hour}

// IntervalBounds is the accepted range for every feed period.
type IntervalBounds struct {
	Min time.Duration
	Max time.Duration
}

// OrDefault replaces unset bounds with DefaultIntervalBounds.
func (b IntervalBounds) OrDefault() IntervalBounds {
	if b.Min <= 0 {
		b.Min = DefaultIntervalBounds.Min
	}
	if b.Max <= 0 {
		b.Max = DefaultIntervalBounds.Max
	}
	return b
}

// Check validates a period given in milliseconds. It compares in
// milliseconds so huge values cannot overflow a time.Duration.
func (b IntervalBounds) Check(name string, ms int) error {
	lo, hi := b.Min.Milliseconds(), b.Max.Milliseconds()
	if int64(ms) < lo || int64(ms) > hi {
		return fmt.Errorf("%s must be between %d and %d ms", name, lo, hi)
	}
	return nil
}

// Clamp pulls ms into range.
func (b IntervalBounds) Clamp(ms int) int {
	lo, hi := b.Min.Milliseconds(), b.Max.Milliseconds()
	switch {
	case int64(ms) < lo:
		return int(lo)
	case int64(ms) > hi:
		return int(hi)
	}
	return ms
}

// Fields lists every period under its wire name.
func (p Preferences) Fields() map[string]int {
	return map[string]int{
		"realtimeInterval":    p.RealtimeInterval,
		"dhcpInterval":        p.DHCPInterval,
		"pingInterval":        p.PingInterval,
		"logInterval":         p.LogInterval,
		"interfaceInterval":   p.InterfaceInterval,
		"nodeMonitorInterval": p.NodeMonitorInterval,
	}
}

// Preferences holds feed periods in milliseconds. Zero means unset.
type Preferences struct {
	RealtimeInterval    int `json:"realtimeInterval,omitempty" yaml:"realtime_interval"`
	DHCPInterval        int `json:"dhcpInterval,omitempty" yaml:"dhcp_interval"`
	PingInterval        int `json:"pingInterval,omitempty" yaml:"ping_interval"`
	LogInterval         int `json:"logInterval,omitempty" yaml:"log_interval"`
	InterfaceInterval   int `json:"interfaceInterval,omitempty" yaml:"interface_interval"`
	NodeMonitorInterval int `json:"nodeMonitorInterval,omitempty" yaml:"node_monitor_interval"`
}

// WithDefaults fills every unset field from defaults.
func (p Preferences) WithDefaults(defaults Preferences) Preferences {
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&p.RealtimeInterval, defaults.RealtimeInterval)
	fill(&p.DHCPInterval, defaults.DHCPInterval)
	fill(&p.PingInterval, defaults.PingInterval)
	fill(&p.LogInterval, defaults.LogInterval)
	fill(&p.InterfaceInterval, defaults.InterfaceInterval)
	fill(&p.NodeMonitorInterval, defaults.NodeMonitorInterval)
	return p
}

// Merge overlays the set fields of partial onto p.
func (p Preferences) Merge(partial Preferences) Preferences {
	set := func(v *int, n int) {
		if n > 0 {
			*v = n
		}
	}
	set(&p.RealtimeInterval, partial.RealtimeInterval)
	set(&p.DHCPInterval, partial.DHCPInterval)
	set(&p.PingInterval, partial.PingInterval)
	set(&p.LogInterval, partial.LogInterval)
	set(&p.InterfaceInterval, partial.InterfaceInterval)
	set(&p.NodeMonitorInterval, partial.NodeMonitorInterval)
	return p
}
