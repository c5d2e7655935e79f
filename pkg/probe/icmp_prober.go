package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"
)

// ICMPProber checks reachability with native ICMP echo requests instead of
// the external ping utility. It runs unprivileged (UDP mode), so on Linux
// net.ipv4.ping_group_range must allow the process's group.
type ICMPProber struct {
	timeout time.Duration
}

// NewICMPProber builds a native prober with the given per-probe timeout.
func NewICMPProber(timeout time.Duration) *ICMPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ICMPProber{timeout: timeout}
}

// Probe sends a single echo request to host and waits up to the configured
// timeout for the reply.
func (p *ICMPProber) Probe(ctx context.Context, host string) (Result, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return Result{}, &ExecError{Host: host, Err: err}
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return Result{}, &ExecError{Host: host, Err: ctx.Err()}
	case err = <-done:
		if err != nil {
			return Result{}, &ExecError{Host: host, Err: err}
		}
	}

	stats := pinger.Statistics()
	reachable := stats.PacketsRecv > 0

	var output string
	if reachable {
		output = fmt.Sprintf("%d/%d packets received, rtt %v",
			stats.PacketsRecv, stats.PacketsSent, stats.AvgRtt)
	} else {
		output = fmt.Sprintf("0/%d packets received, 100%% loss", stats.PacketsSent)
	}

	return Result{Reachable: reachable, Output: output}, nil
}
