package worker

import (
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/router"
	"github.com/cuemby/fluxion/pkg/types"
)

func init() {
	// Ref's w field is unexported and drops on encode, which is the point:
	// a Ref crossing the wire inside a replicated deployment value keeps
	// only ID and Node, the two fields meaningful on a remote process.
	gob.Register(Ref{})
}

// State is a worker's lifecycle stage (§4.3).
type State uint32

const (
	StateInitialising State = iota
	StateReady
	StateStopped
)

type kind uint8

const (
	kindMsg kind = iota
	kindDeployComplete
	kindStop
)

type message struct {
	kind          kind
	value         any
	invocation    any
	hasInvocation bool
}

// CrashHandler is invoked on the worker's own goroutine when process
// returns an error; the supervisor owns restart policy.
type CrashHandler func(w *Worker, err error)

// Worker is a single actor: operation/strategy are immutable, the context
// is replaced at most once (when deploy_complete fills in a missing
// deployment), and state is touched only by this worker's own goroutine,
// so no lock guards it.
type Worker struct {
	ID        string
	operation types.Operation
	strategy  types.Strategy
	tag       string
	ctx       *types.Context

	state atomic.Uint32 // lifecycle State
	data  any            // user state

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []message
	closed bool
	done   chan struct{}

	onCrash CrashHandler
}

// Spawn starts a worker's goroutine in the initialising state and returns
// a Ref other components hold.
func Spawn(id string, op types.Operation, strat types.Strategy, tag string, ctx *types.Context, onCrash CrashHandler) Ref {
	w := &Worker{
		ID:        id,
		operation: op,
		strategy:  strat,
		tag:       tag,
		ctx:       ctx,
		done:      make(chan struct{}),
		onCrash:   onCrash,
	}
	w.cond = sync.NewCond(&w.mu)
	w.state.Store(uint32(StateInitialising))
	w.resetState()
	register(w)
	go w.loop()
	return Ref{ID: id, w: w}
}

func (w *Worker) resetState() {
	init := w.operation.InitialState()
	if thunk, ok := init.(func() any); ok {
		init = thunk()
	}
	w.data = init
}

// State reports the worker's current lifecycle stage.
func (w *Worker) State() State { return State(w.state.Load()) }

// Done is closed once the worker stops, by crash or orderly shutdown.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) enqueue(msg message) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, msg)
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *Worker) dequeue() (message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 && !w.closed {
		w.cond.Wait()
	}
	if len(w.queue) == 0 {
		return message{}, false
	}
	msg := w.queue[0]
	w.queue = w.queue[1:]
	return msg, true
}

func (w *Worker) loop() {
	defer close(w.done)
	defer unregister(w.ID)
	for {
		msg, ok := w.dequeue()
		if !ok {
			return
		}
		switch msg.kind {
		case kindStop:
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			w.state.Store(uint32(StateStopped))
			return
		case kindDeployComplete:
			// A worker spawned during deploy resolved its context before
			// the deployment record was published; pick it up now.
			if w.ctx.Deployment == nil && w.ctx.Store != nil {
				if dep, ok := w.ctx.Store.GetIndexed("deployment", w.ctx.Runtime.WorkflowRef, w.ctx.Runtime.NodeIndex); ok {
					cp := *w.ctx
					cp.Deployment = dep
					w.ctx = &cp
				}
			}
			w.state.Store(uint32(StateReady))
		case kindMsg:
			if w.handle(msg) {
				return
			}
		}
	}
}

// handle runs one message through the strategy's process hook and routes
// whatever it emits (§4.3 receive algorithm). Returns true if the worker
// crashed and the loop should stop; a panic in process or routing counts
// as a crash.
func (w *Worker) handle(msg message) (crashed bool) {
	defer func() {
		if p := recover(); p != nil {
			w.crash(fmt.Errorf("worker: process panicked: %v", p))
			crashed = true
		}
	}()
	ctx := w.ctx.WithInvocation(msg.invocation, msg.hasInvocation)
	wm := types.WorkerMessage{Value: msg.value, Invocation: msg.invocation, HasInvocation: msg.hasInvocation}

	result, err := w.strategy.Process(ctx, wm, w.data, w.tag)
	if err != nil {
		w.crash(err)
		return true
	}
	if result.HasState {
		w.data = result.State
	}
	if result.HasEmit {
		if err := router.Deliver(ctx, result.Emit); err != nil {
			w.crash(err)
			return true
		}
	}
	if result.HasEmitInvocation {
		if err := router.DeliverInvocation(ctx, result.EmitInvocation); err != nil {
			w.crash(err)
			return true
		}
	}
	return false
}

func (w *Worker) crash(err error) {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.state.Store(uint32(StateStopped))
	log.WithComponent("worker").Error().Str("worker_id", w.ID).Err(err).Msg("process crashed")
	if w.onCrash != nil {
		w.onCrash(w, err)
	}
}

// Ref is the opaque handle other components hold for a worker. w is set
// only when the worker lives in this process; a Ref resolved from a
// remote create_local reply carries just ID and Node, and Send routes
// through the cluster instead.
type Ref struct {
	ID   string
	Node string
	w    *Worker
}

// live resolves the Worker a local Ref should deliver to right now. A
// cached w goes stale across a supervisor restart (a crashed worker is
// respawned under the same ID but as a new *Worker), so a closed w is
// re-resolved through the registry rather than trusted as-is; this is the
// same lookup the remote worker.send/stop/deploy_complete handlers already
// use to find the current incarnation.
func (r Ref) live() (*Worker, bool) {
	if r.w != nil && r.w.State() != StateStopped {
		return r.w, true
	}
	return lookup(r.ID)
}

// Send delivers a user value (§4.3's msg(value, invocation?)). Never
// blocks the caller: local delivery enqueues directly, remote delivery
// fires a notify and returns immediately.
func (r Ref) Send(value any, invocation any, hasInvocation bool) {
	if w, ok := r.live(); ok {
		w.enqueue(message{kind: kindMsg, value: value, invocation: invocation, hasInvocation: hasInvocation})
		return
	}
	if activeRuntime != nil && r.Node != "" {
		activeRuntime.Notify(r.Node, "worker.send", SendRequest{ID: r.ID, Value: value, Invocation: invocation, HasInvocation: hasInvocation})
	}
}

// DeployComplete releases a worker held in initialising since deploy time.
func (r Ref) DeployComplete() {
	if w, ok := r.live(); ok {
		w.enqueue(message{kind: kindDeployComplete})
		return
	}
	if activeRuntime != nil && r.Node != "" {
		activeRuntime.Notify(r.Node, "worker.deploy_complete", SendRequest{ID: r.ID})
	}
}

// Stop requests an orderly shutdown.
func (r Ref) Stop() {
	if w, ok := r.live(); ok {
		w.enqueue(message{kind: kindStop})
		return
	}
	if activeRuntime != nil && r.Node != "" {
		activeRuntime.Notify(r.Node, "worker.stop", SendRequest{ID: r.ID})
	}
}

// State reports the underlying worker's lifecycle stage. Only meaningful
// for a local Ref.
func (r Ref) State() State {
	if r.w == nil {
		return StateInitialising
	}
	return r.w.State()
}

// Done is closed once the underlying worker stops. Only meaningful for a
// local Ref.
func (r Ref) Done() <-chan struct{} {
	if r.w == nil {
		return nil
	}
	return r.w.Done()
}
