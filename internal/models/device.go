package models

import "time"

type Interface struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	MAC      string `json:"mac_address,omitempty"`
	MTU      int    `json:"mtu,omitempty"`
	Running  bool   `json:"running"`
	Disabled bool   `json:"disabled"`
	RxBytes  int64  `json:"rx_bytes"`
	TxBytes  int64  `json:"tx_bytes"`
	Comment  string `json:"comment,omitempty"`
}

type TrafficSample struct {
	Interface string    `json:"interface"`
	RxBps     int64     `json:"rx_bps"`
	TxBps     int64     `json:"tx_bps"`
	RxPps     int64     `json:"rx_pps"`
	TxPps     int64     `json:"tx_pps"`
	Simulated bool      `json:"simulated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Lease struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	MAC          string `json:"mac_address"`
	HostName     string `json:"host_name,omitempty"`
	Server       string `json:"server,omitempty"`
	Status       string `json:"status"`
	ExpiresAfter string `json:"expires_after,omitempty"`
	LastSeen     string `json:"last_seen,omitempty"`
	Dynamic      bool   `json:"dynamic"`
	Disabled     bool   `json:"disabled"`
	Comment      string `json:"comment,omitempty"`
}

type LogEntry struct {
	ID      string `json:"id"`
	Time    string `json:"time"`
	Topics  string `json:"topics"`
	Message string `json:"message"`
}

type AddressEntry struct {
	ID       string `json:"id"`
	List     string `json:"list"`
	Address  string `json:"address"`
	Comment  string `json:"comment,omitempty"`
	Disabled bool   `json:"disabled"`
	Dynamic  bool   `json:"dynamic"`
	Created  string `json:"creation_time,omitempty"`
}

// Rule is one /ip/firewall/filter entry.
type Rule struct {
	ID              string `json:"id"`
	Chain           string `json:"chain"`
	Action          string `json:"action"`
	Protocol        string `json:"protocol,omitempty"`
	SrcAddress      string `json:"src_address,omitempty"`
	DstAddress      string `json:"dst_address,omitempty"`
	SrcAddressList  string `json:"src_address_list,omitempty"`
	DstAddressList  string `json:"dst_address_list,omitempty"`
	SrcPort         string `json:"src_port,omitempty"`
	DstPort         string `json:"dst_port,omitempty"`
	InInterface     string `json:"in_interface,omitempty"`
	OutInterface    string `json:"out_interface,omitempty"`
	ConnectionState string `json:"connection_state,omitempty"`
	Comment         string `json:"comment,omitempty"`
	Bytes           int64  `json:"bytes"`
	Packets         int64  `json:"packets"`
	Disabled        bool   `json:"disabled"`
	Dynamic         bool   `json:"dynamic"`
	Invalid         bool   `json:"invalid"`
}

type Queue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	MaxLimit string `json:"max_limit"`
	Rate     string `json:"rate,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Disabled bool   `json:"disabled"`
}

type HealthSample struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type SystemResources struct {
	Uptime        string  `json:"uptime"`
	Version       string  `json:"version"`
	BoardName     string  `json:"board_name"`
	Architecture  string  `json:"architecture"`
	CPU           string  `json:"cpu"`
	CPUCount      int     `json:"cpu_count"`
	CPULoad       float64 `json:"cpu_load"`
	FreeMemory    int64   `json:"free_memory"`
	TotalMemory   int64   `json:"total_memory"`
	FreeHDDSpace  int64   `json:"free_hdd_space"`
	TotalHDDSpace int64   `json:"total_hdd_space"`
	Simulated     bool    `json:"simulated,omitempty"`
}

type SystemIdentity struct {
	Name string `json:"name"`
}

type PingSample struct {
	Target    string    `json:"target"`
	Latency   *float64  `json:"latency"`
	Timestamp time.Time `json:"timestamp"`
}

type UpdateStatus struct {
	Channel          string `json:"channel"`
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	Status           string `json:"status"`
}
