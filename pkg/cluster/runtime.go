package cluster

import (
	"sync"

	"github.com/cuemby/fluxion/pkg/events"
)

// Mode is a runtime's role (§6).
type Mode string

const (
	ModeMaster Mode = "master"
	ModeWorker Mode = "worker"
	ModeLocal  Mode = "local"
	ModeTest   Mode = "test"
)

// Version is the protocol version this build speaks. Compatible lists the
// versions this build accepts from a peer (§4.1, §6 beacon).
const Version = "1.0"

var Compatible = []string{"1.0"}

// BeaconInfo is what a beacon request returns (§6).
type BeaconInfo struct {
	Mode       Mode
	Version    string
	Compatible []string
}

// member holds what the runtime knows about one peer.
type member struct {
	Tags []string
}

// Runtime is the process-wide membership service: the master's registry of
// connected workers, or a worker's view of its single master. It is
// dependency-injected everywhere else (store, supervisor, deploy,
// workflow) so tests can substitute a loopback-transport Runtime.
type Runtime struct {
	Mode     Mode
	SelfAddr string
	Tags     []string

	JoinSecret string

	mu      sync.RWMutex
	members map[string]*member // address -> member (a worker holds just its master)

	bus *events.Broker

	transport Transport
	handlers  map[string]Handler
}

// New creates a Runtime in the given mode, wired to transport t (nil
// selects an in-process loopback transport appropriate for local/test
// modes).
func New(mode Mode, selfAddr string, tags []string, t Transport) *Runtime {
	r := &Runtime{
		Mode:      mode,
		SelfAddr:  selfAddr,
		Tags:      tags,
		members:   make(map[string]*member),
		bus:       events.NewBroker(),
		handlers:  make(map[string]Handler),
		transport: t,
	}
	if r.transport == nil {
		r.transport = NewLoopbackTransport(r)
	}
	r.bus.Start()
	r.registerBuiltins()
	return r
}

// Bus returns the worker_up/worker_down event broker (§4.1).
func (r *Runtime) Bus() *events.Broker { return r.bus }

// Beacon answers the beacon protocol (§6).
func (r *Runtime) Beacon() BeaconInfo {
	return BeaconInfo{Mode: r.Mode, Version: Version, Compatible: Compatible}
}

// Add registers addr as a live member with the given tags and publishes
// worker_up.
func (r *Runtime) Add(addr string, tags []string) {
	r.mu.Lock()
	r.members[addr] = &member{Tags: tags}
	r.mu.Unlock()
	r.bus.Publish(&events.Event{Type: events.EventWorkerUp, Node: addr, Tags: tags})
}

// Remove deregisters addr and publishes worker_down.
func (r *Runtime) Remove(addr string, reason string) {
	r.mu.Lock()
	_, existed := r.members[addr]
	delete(r.members, addr)
	r.mu.Unlock()
	if existed {
		r.bus.Publish(&events.Event{Type: events.EventWorkerDown, Node: addr, Reason: reason})
	}
}

// Members returns every currently live node address.
func (r *Runtime) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.members))
	for addr := range r.members {
		out = append(out, addr)
	}
	return out
}

// TaggedMembers returns every live node address tagged with tag.
func (r *Runtime) TaggedMembers(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for addr, m := range r.members {
		for _, t := range m.Tags {
			if t == tag {
				out = append(out, addr)
				break
			}
		}
	}
	return out
}

// IsMember reports whether addr is currently live.
func (r *Runtime) IsMember(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[addr]
	return ok
}
