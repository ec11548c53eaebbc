package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// LatencyMeter sends one echo and returns the round-trip time.
type LatencyMeter interface {
	Measure(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

var ErrEchoTimeout = errors.New("echo timed out")

// ICMPMeter sends one echo request over an unprivileged ICMP socket. When
// the kernel refuses the socket it shells out to the system ping binary.
type ICMPMeter struct {
	seq atomic.Uint32
}

func NewICMPMeter() *ICMPMeter {
	return &ICMPMeter{}
}

func (p *ICMPMeter) Measure(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ip, err := resolveIPv4(ctx, host)
	if err != nil {
		return 0, err
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return execPing(ctx, ip.String(), timeout)
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  seq,
			Data: []byte("routerwatch"),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, &net.UDPAddr{IP: ip}); err != nil {
		return 0, err
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, ErrEchoTimeout
			}
			return 0, err
		}
		reply, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), buf[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		// The kernel rewrites the echo ID on datagram sockets; match on
		// sequence and peer only.
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		if udp, ok := peer.(*net.UDPAddr); ok && !udp.IP.Equal(ip) {
			continue
		}
		return time.Since(start), nil
	}
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("IPv6 target %s not supported", host)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

var pingRTTRegex = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)

func execPing(ctx context.Context, target string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	output, err := buildPingCommand(ctx, target, timeout).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return 0, ErrEchoTimeout
	}
	if err != nil {
		return 0, fmt.Errorf("unreachable: %w", err)
	}
	if rtt, ok := parseRTT(string(output)); ok {
		return rtt, nil
	}
	return time.Since(start), nil
}

func parseRTT(output string) (time.Duration, bool) {
	match := pingRTTRegex.FindStringSubmatch(output)
	if len(match) < 2 {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(match[1]), 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(value * float64(time.Millisecond)), true
}

func buildPingCommand(ctx context.Context, target string, timeout time.Duration) *exec.Cmd {
	ms := int(timeout.Milliseconds())
	if ms < 1000 {
		ms = 1000
	}
	switch runtime.GOOS {
	case "windows":
		return exec.CommandContext(ctx, "ping", "-n", "1", "-w", strconv.Itoa(ms), target)
	case "darwin", "freebsd", "openbsd", "netbsd":
		return exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(ms), target)
	default:
		return exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(ms/1000), target)
	}
}
