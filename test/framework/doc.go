// Package framework is an in-process cluster harness: it wires several
// cluster.Runtime values together over real loopback TCP sockets, so a
// whole master-plus-workers topology runs inside one test binary, with no
// second OS process, while still exercising the genuine yamux transport,
// health check and beacon/token join handshake rather than a synthetic
// shortcut. Adapted from the teacher's own test/framework cluster, but
// collapsed to goroutines-plus-loopback-ports instead of spawning VMs,
// Docker containers or OS processes per node.
package framework
