package workflow

import (
	"sync"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/deploy"
	"github.com/cuemby/fluxion/pkg/events"
	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
)

// Manager is the workflow manager (C7). One Manager runs per process
// (usually the master); it tracks every workflow this runtime has
// deployed, replays deployment state to nodes that join afterward, and
// optionally durably records deploy/undeploy history through a raft group for
// restart survival.
type Manager struct {
	rt       *cluster.Runtime
	store    *store.Store
	reg      *supervisor.Registry
	deployer *deploy.Deployer

	raft *raftNode // nil unless this Manager runs raft (master, durable mode)

	mu   sync.Mutex
	refs map[string]bool

	sub      events.Subscriber
	stopDown chan struct{}
}

// Option configures optional Manager behaviour.
type Option func(*Manager)

// WithRaft enables durable deploy-log tracking backed by a single-node
// raft group at dataDir, surviving a master process restart (§4.7).
func WithRaft(nodeID, bindAddr, dataDir string) Option {
	return func(m *Manager) {
		n, err := newRaftNode(nodeID, bindAddr, dataDir)
		if err != nil {
			log.WithComponent("workflow").Error().Err(err).Msg("raft init failed, continuing without durable deploy log")
			return
		}
		m.raft = n
	}
}

// New builds a Manager wired to rt/s/reg/deployer, applying opts, and
// starts its bus subscription.
func New(rt *cluster.Runtime, s *store.Store, reg *supervisor.Registry, d *deploy.Deployer, opts ...Option) *Manager {
	m := &Manager{
		rt:       rt,
		store:    s,
		reg:      reg,
		deployer: d,
		refs:     make(map[string]bool),
		stopDown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.raft != nil {
		for _, ref := range m.raft.fsm.Refs() {
			m.refs[ref] = true
		}
	}
	m.sub = rt.Bus().Subscribe()
	go m.watchBus()
	return m
}

// Deploy flattens and deploys wf, records it for late-join replay, and
// (if raft is enabled) commits the deploy to the durable log.
func (m *Manager) Deploy(wf *types.Workflow) (*types.FlatWorkflow, string, error) {
	flat, ref, err := m.deployer.Deploy(wf)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	m.refs[ref] = true
	m.mu.Unlock()

	if m.raft != nil {
		if err := m.raft.apply(Command{Op: "deploy", Ref: ref}); err != nil {
			log.WithComponent("workflow").Warn().Str("workflow_ref", ref).Err(err).Msg("deploy log commit failed")
		}
	}
	return flat, ref, nil
}

// Undeploy tears down ref everywhere in the cluster and stops tracking
// it for replay. Idempotent: undeploying an unknown ref is a no-op.
func (m *Manager) Undeploy(ref string) error {
	m.mu.Lock()
	_, known := m.refs[ref]
	delete(m.refs, ref)
	m.mu.Unlock()
	if !known {
		return nil
	}

	m.reg.CollapseWorkflow(ref)
	m.rt.OnAllWorkers("supervisor.collapse_workflow", supervisor.RefRequest{WorkflowRef: ref})
	m.store.PutEverywhere("deployment", ref)
	m.store.PutEverywhere("links", ref)
	m.store.PutEverywhere("topology", ref)
	metrics.WorkflowsDeployed.Dec()

	if m.raft != nil {
		if err := m.raft.apply(Command{Op: "undeploy", Ref: ref}); err != nil {
			log.WithComponent("workflow").Warn().Str("workflow_ref", ref).Err(err).Msg("undeploy log commit failed")
		}
	}
	return nil
}

// Refs returns every workflow ref this Manager currently tracks.
func (m *Manager) Refs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.refs))
	for ref := range m.refs {
		out = append(out, ref)
	}
	return out
}

// Close unsubscribes from the bus and stops the bus-watching goroutine.
func (m *Manager) Close() {
	close(m.stopDown)
	m.rt.Bus().Unsubscribe(m.sub)
}

// watchBus replays deployment state to every worker_up event and ignores
// worker_down, adapted from the teacher's ticker-driven reconciliation
// loop but event-driven instead of polled.
func (m *Manager) watchBus() {
	for {
		select {
		case ev, ok := <-m.sub:
			if !ok {
				return
			}
			// EventWorkerDown needs no handling here: §4.1 is explicit
			// that there is no self-healing, and cluster.Runtime.Remove
			// has already dropped the node from membership by the time
			// this event is published.
			if ev.Type == events.EventWorkerUp {
				m.replayTo(ev.Node)
			}
		case <-m.stopDown:
			return
		}
	}
}

// replayTo brings a newly joined node up to date on every workflow this
// Manager tracks: its deployment/links/topology entries and its
// NodeWorkerSup tree.
func (m *Manager) replayTo(addr string) {
	logger := log.WithComponent("workflow")
	for _, ref := range m.Refs() {
		if _, err := m.rt.On(addr, "supervisor.ensure_node_sup", supervisor.RefRequest{WorkflowRef: ref}); err != nil {
			logger.Warn().Str("node", addr).Str("workflow_ref", ref).Err(err).Msg("replay: ensure_node_sup failed")
			continue
		}

		for _, tag := range []string{"topology", "deployment", "links"} {
			items, ok := m.store.Get(tag, ref)
			if !ok {
				continue
			}
			req := store.PutRequest{Tag: tag, Ref: ref, Items: items}
			if _, err := m.rt.On(addr, "store.put", req); err != nil {
				logger.Warn().Str("node", addr).Str("workflow_ref", ref).Str("tag", tag).Err(err).Msg("replay: store.put failed")
			}
		}

		if _, err := m.rt.On(addr, "supervisor.deploy_complete", supervisor.RefRequest{WorkflowRef: ref}); err != nil {
			logger.Warn().Str("node", addr).Str("workflow_ref", ref).Err(err).Msg("replay: deploy_complete failed")
		}
	}
}
