package supervisor

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

// spec is what WorkerSup needs to remember to restart a crashed worker
// with its initial state (§4.4's "Worker = transient").
type spec struct {
	op   types.Operation
	strat types.Strategy
	tag  string
	ctx  *types.Context
}

// WorkerSup owns every worker for one flattened node on one physical
// runtime. Restarts are one_for_one: only the crashed child is replaced.
type WorkerSup struct {
	WorkflowRef string
	SelfAddr    string
	NodeIndex   int

	mu       sync.Mutex
	children map[string]spec
	refs     map[string]worker.Ref
	seq      atomic.Uint64

	collapsed bool
}

// NewWorkerSup creates an empty supervisor for flattened node index idx of
// workflow ref, running on the physical runtime at selfAddr. The address is
// folded into auto-generated ids alongside ref so two WorkerSups that
// happen to share a flattened index never collide, whether that's two
// workflows on one real process or two simulated runtimes sharing one
// test process's worker registry.
func NewWorkerSup(ref, selfAddr string, idx int) *WorkerSup {
	return &WorkerSup{
		WorkflowRef: ref,
		SelfAddr:    selfAddr,
		NodeIndex:   idx,
		children:    make(map[string]spec),
		refs:        make(map[string]worker.Ref),
	}
}

// Spawn starts a new worker under this supervisor and records enough to
// restart it on crash.
func (s *WorkerSup) Spawn(id string, op types.Operation, strat types.Strategy, tag string, ctx *types.Context) worker.Ref {
	if id == "" {
		id = s.nextID()
	}
	ref := worker.Spawn(id, op, strat, tag, ctx, s.onCrash)

	s.mu.Lock()
	s.children[id] = spec{op: op, strat: strat, tag: tag, ctx: ctx}
	s.refs[id] = ref
	s.mu.Unlock()

	metrics.WorkersTotal.WithLabelValues(itoa(s.NodeIndex), tag).Inc()
	return ref
}

func (s *WorkerSup) nextID() string {
	return s.SelfAddr + "|" + s.WorkflowRef + "-" + itoa(s.NodeIndex) + "-" + itoa64(s.seq.Add(1))
}

// onCrash restarts the crashed worker with fresh initial state, unless
// this supervisor has already collapsed (§4.4's NodeWorkerSup
// max_restarts=0 propagates down by tearing its WorkerSups down first).
func (s *WorkerSup) onCrash(w *worker.Worker, err error) {
	s.mu.Lock()
	if s.collapsed {
		s.mu.Unlock()
		return
	}
	sp, ok := s.children[w.ID]
	s.mu.Unlock()
	if !ok {
		return
	}

	metrics.WorkerRestarts.WithLabelValues(itoa(s.NodeIndex)).Inc()
	log.WithComponent("supervisor").Warn().Str("worker_id", w.ID).Err(err).Msg("restarting worker")

	newRef := worker.Spawn(w.ID, sp.op, sp.strat, sp.tag, sp.ctx, s.onCrash)
	s.mu.Lock()
	s.refs[w.ID] = newRef
	s.mu.Unlock()
}

// Ref returns the current live reference for a worker id, if any.
func (s *WorkerSup) Ref(id string) (worker.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refs[id]
	return r, ok
}

// Refs returns every currently tracked worker reference.
func (s *WorkerSup) Refs() []worker.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]worker.Ref, 0, len(s.refs))
	for _, r := range s.refs {
		out = append(out, r)
	}
	return out
}

// Collapse stops every child and marks this supervisor dead; any further
// crash is ignored rather than restarted.
func (s *WorkerSup) Collapse() {
	s.mu.Lock()
	s.collapsed = true
	refs := make([]worker.Ref, 0, len(s.refs))
	for _, r := range s.refs {
		refs = append(refs, r)
	}
	s.mu.Unlock()

	for _, r := range refs {
		r.Stop()
	}
}
