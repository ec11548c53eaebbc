package device

import (
	"strconv"
	"strings"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/models"
)

// Row is one reply sentence as returned by the device API.
type Row = map[string]string

func toInterface(r Row) models.Interface {
	return models.Interface{
		ID:       r[".id"],
		Name:     r["name"],
		Type:     r["type"],
		MAC:      r["mac-address"],
		MTU:      atoi(r["actual-mtu"], atoi(r["mtu"], 0)),
		Running:  boolean(r["running"]),
		Disabled: boolean(r["disabled"]),
		RxBytes:  atoi64(r["rx-byte"]),
		TxBytes:  atoi64(r["tx-byte"]),
		Comment:  r["comment"],
	}
}

func toTrafficSample(iface string, r Row, now time.Time) models.TrafficSample {
	return models.TrafficSample{
		Interface: iface,
		RxBps:     atoi64(r["rx-bits-per-second"]),
		TxBps:     atoi64(r["tx-bits-per-second"]),
		RxPps:     atoi64(r["rx-packets-per-second"]),
		TxPps:     atoi64(r["tx-packets-per-second"]),
		Timestamp: now,
	}
}

func toLease(r Row) models.Lease {
	return models.Lease{
		ID:           r[".id"],
		Address:      r["address"],
		MAC:          r["mac-address"],
		HostName:     r["host-name"],
		Server:       r["server"],
		Status:       r["status"],
		ExpiresAfter: r["expires-after"],
		LastSeen:     r["last-seen"],
		Dynamic:      boolean(r["dynamic"]),
		Disabled:     boolean(r["disabled"]),
		Comment:      r["comment"],
	}
}

func toLogEntry(r Row) models.LogEntry {
	return models.LogEntry{
		ID:      r[".id"],
		Time:    r["time"],
		Topics:  r["topics"],
		Message: r["message"],
	}
}

func toAddressEntry(r Row) models.AddressEntry {
	return models.AddressEntry{
		ID:       r[".id"],
		List:     r["list"],
		Address:  r["address"],
		Comment:  r["comment"],
		Disabled: boolean(r["disabled"]),
		Dynamic:  boolean(r["dynamic"]),
		Created:  r["creation-time"],
	}
}

func toRule(r Row) models.Rule {
	return models.Rule{
		ID:              r[".id"],
		Chain:           r["chain"],
		Action:          r["action"],
		Protocol:        r["protocol"],
		SrcAddress:      r["src-address"],
		DstAddress:      r["dst-address"],
		SrcAddressList:  r["src-address-list"],
		DstAddressList:  r["dst-address-list"],
		SrcPort:         r["src-port"],
		DstPort:         r["dst-port"],
		InInterface:     r["in-interface"],
		OutInterface:    r["out-interface"],
		ConnectionState: r["connection-state"],
		Comment:         r["comment"],
		Bytes:           atoi64(r["bytes"]),
		Packets:         atoi64(r["packets"]),
		Disabled:        boolean(r["disabled"]),
		Dynamic:         boolean(r["dynamic"]),
		Invalid:         boolean(r["invalid"]),
	}
}

func toQueue(r Row) models.Queue {
	return models.Queue{
		ID:       r[".id"],
		Name:     r["name"],
		Target:   r["target"],
		MaxLimit: r["max-limit"],
		Rate:     r["rate"],
		Bytes:    r["bytes"],
		Comment:  r["comment"],
		Disabled: boolean(r["disabled"]),
	}
}

// toHealthSamples handles both reply shapes: one row per sensor with
// name/value/type (v7) and a single row of sensor=value pairs (v6).
func toHealthSamples(rows []Row) []models.HealthSample {
	samples := make([]models.HealthSample, 0, len(rows))
	for _, r := range rows {
		if name, ok := r["name"]; ok {
			samples = append(samples, models.HealthSample{Name: name, Value: r["value"], Unit: r["type"]})
			continue
		}
		for k, v := range r {
			if strings.HasPrefix(k, ".") {
				continue
			}
			samples = append(samples, models.HealthSample{Name: k, Value: v})
		}
	}
	return samples
}

func toSystemResources(r Row) models.SystemResources {
	return models.SystemResources{
		Uptime:        r["uptime"],
		Version:       r["version"],
		BoardName:     r["board-name"],
		Architecture:  r["architecture-name"],
		CPU:           r["cpu"],
		CPUCount:      atoi(r["cpu-count"], 0),
		CPULoad:       float64(atoi64(r["cpu-load"])),
		FreeMemory:    atoi64(r["free-memory"]),
		TotalMemory:   atoi64(r["total-memory"]),
		FreeHDDSpace:  atoi64(r["free-hdd-space"]),
		TotalHDDSpace: atoi64(r["total-hdd-space"]),
	}
}

func toSystemIdentity(r Row) models.SystemIdentity {
	return models.SystemIdentity{Name: r["name"]}
}

func toUpdateStatus(r Row) models.UpdateStatus {
	return models.UpdateStatus{
		Channel:          r["channel"],
		InstalledVersion: r["installed-version"],
		LatestVersion:    r["latest-version"],
		Status:           r["status"],
	}
}

// toPingSample reads the first reply that carries a round-trip time.
func toPingSample(target string, rows []Row, now time.Time) models.PingSample {
	sample := models.PingSample{Target: target, Timestamp: now}
	for _, r := range rows {
		t, ok := r["time"]
		if !ok {
			continue
		}
		if d, err := ParseDuration(t); err == nil {
			ms := float64(d.Microseconds()) / 1000
			sample.Latency = &ms
			break
		}
	}
	return sample
}

var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseDuration parses RouterOS durations such as "1w2d03:04:05",
// "3h2m1s" or "12ms345us".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, strconv.ErrSyntax
	}

	var total time.Duration
	for s != "" {
		if clock, ok := parseClock(s); ok {
			return total + clock, nil
		}
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 {
			return 0, strconv.ErrSyntax
		}
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, err
		}
		rest := s[i:]
		matched := false
		for _, u := range durationUnits {
			if strings.HasPrefix(rest, u.suffix) {
				total += time.Duration(n * float64(u.unit))
				s = rest[len(u.suffix):]
				matched = true
				break
			}
		}
		if !matched {
			return 0, strconv.ErrSyntax
		}
	}
	return total, nil
}

func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	var d time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		d += time.Duration(n) * units[i]
	}
	return d, true
}

func boolean(v string) bool {
	return v == "true" || v == "yes"
}

func atoi(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func atoi64(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
