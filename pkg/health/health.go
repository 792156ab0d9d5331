// Package health provides the liveness probe Cluster.Connect runs before
// attempting a handshake (§4.1): a cheap, bounded check that something is
// listening at all, before spending a round trip on the beacon/accept
// protocol.
package health

import (
	"fmt"
	"net"
	"time"
)

// Status is the outcome of a single liveness probe.
type Status struct {
	Healthy bool
	Message string
}

// Checker probes a single address for liveness.
type Checker interface {
	Check(addr string) Status
}

// Config controls probe timing.
type Config struct {
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}

// TCPChecker probes liveness with a bare TCP dial, which is all §4.1
// requires ("liveness + beacon fetch" — the beacon fetch itself happens one
// layer up, in pkg/cluster, once liveness is established).
type TCPChecker struct {
	Config
}

// NewTCPChecker builds a TCPChecker with the given config.
func NewTCPChecker(cfg Config) *TCPChecker {
	return &TCPChecker{Config: cfg}
}

// Check dials addr and reports whether the connection succeeded.
func (c *TCPChecker) Check(addr string) Status {
	conn, err := net.DialTimeout("tcp", addr, c.timeout())
	if err != nil {
		return Status{Healthy: false, Message: fmt.Sprintf("dial %s: %v", addr, err)}
	}
	_ = conn.Close()
	return Status{Healthy: true}
}
