package cluster

import "errors"

// Connect-time errors (§4.1, §7). These are reported to the caller;
// membership is left unchanged.
var (
	ErrNotDistributed = errors.New("cluster: runtime is not in a distributed mode")
	ErrNotConnected   = errors.New("cluster: could not reach remote node")
	ErrNotFluxion     = errors.New("cluster: remote did not answer the beacon protocol")
	ErrIncompatible   = errors.New("cluster: remote reported an incompatible version")
	ErrModeMismatch   = errors.New("cluster: remote mode does not match what was expected")
	ErrUnknownMode    = errors.New("cluster: no local handler for remote's mode")
	ErrUnknownMethod  = errors.New("cluster: no handler registered for method")
	ErrUnknownNode    = errors.New("cluster: node is not a member")
)
