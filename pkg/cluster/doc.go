// Package cluster implements membership (§4.1): the master/worker beacon
// and connect handshake, the worker_up/worker_down pub/sub bus, and the
// bidirectional RPC primitives (On, OnMany, OnAllWorkers, OnTaggedWorkers,
// OnN) every other component builds on.
//
// Transport is pluggable. The real transport multiplexes one yamux session
// per peer over a TCP connection and frames calls with encoding/gob; the
// loopback transport used by "local" and "test" runtime modes dispatches
// calls in-process with no encoding at all, so integration tests can wire
// several Runtimes together in one binary.
package cluster
