package framework

import (
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cuemby/fluxion/pkg/strategy"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

func init() {
	gob.Register(&FanOutDeployment{})
}

// Recorder is a goroutine-safe append-only log, standing in for the
// outside-the-workflow observation point a real sink would publish to
// (a queue, a database row) that the out-of-scope DSL would normally own.
type Recorder struct {
	mu     sync.Mutex
	values []any
}

// Record appends v.
func (r *Recorder) Record(v any) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

// Values returns a snapshot of everything recorded so far, in order.
func (r *Recorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Len reports how many values have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// funcOp is a minimal types.Operation built from plain functions, the
// harness's stand-in for the out-of-scope DSL that would otherwise
// produce one.
type funcOp struct {
	in, out []string
	initial func() any
	process func(state, cfg, value any) (types.CallbackResult, error)
}

func (o *funcOp) InPorts() []string             { return o.in }
func (o *funcOp) OutPorts() []string            { return o.out }
func (o *funcOp) DefaultStrategy() types.Strategy { return nil }
func (o *funcOp) InitialState() any             { return o.initial }

func (o *funcOp) CallbackInfo(name string) (types.CallbackInfo, bool) {
	if name != "process" {
		return types.CallbackInfo{}, false
	}
	return types.CallbackInfo{ReadsState: true, WritesState: true, Emits: true}, true
}

func (o *funcOp) Call(name string, state any, cfg any, args []any) (types.CallbackResult, error) {
	if name != "process" {
		return types.CallbackResult{}, types.ErrUnknownCallback
	}
	var v any
	if len(args) > 0 {
		v = args[0]
	}
	return o.process(state, cfg, v)
}

// IdentityOp forwards every value it receives to its single out-port
// unchanged.
func IdentityOp() types.Operation {
	return &funcOp{
		in:      []string{"in"},
		out:     []string{"out"},
		initial: func() any { return nil },
		process: func(_, _, v any) (types.CallbackResult, error) {
			return types.CallbackResult{Emit: map[string][]any{"out": {v}}}, nil
		},
	}
}

// SinkOp has no out-ports; every delivered value is appended to rec.
func SinkOp(rec *Recorder) types.Operation {
	return &funcOp{
		in:      []string{"in"},
		out:     nil,
		initial: func() any { return nil },
		process: func(_, _, v any) (types.CallbackResult, error) {
			rec.Record(v)
			return types.CallbackResult{}, nil
		},
	}
}

// KeyedSumOp accumulates a running sum per partition key, where the key is
// derived from the same function KeyedArgs.KeyFunc uses to route values.
// The per-worker state IS the running sum (so a freshly created worker for
// an unseen key starts at zero), and the op additionally mirrors every
// update into its own map so a test can read the final sum per key without
// threading a downstream sink through the emit/deliver machinery.
type KeyedSumOp struct {
	keyFunc func(any) string

	mu   sync.Mutex
	sums map[string]int
}

// NewKeyedSumOp builds a KeyedSumOp partitioning by keyFunc.
func NewKeyedSumOp(keyFunc func(any) string) *KeyedSumOp {
	return &KeyedSumOp{keyFunc: keyFunc, sums: make(map[string]int)}
}

func (o *KeyedSumOp) InPorts() []string             { return []string{"in"} }
func (o *KeyedSumOp) OutPorts() []string            { return []string{"out"} }
func (o *KeyedSumOp) DefaultStrategy() types.Strategy { return nil }
func (o *KeyedSumOp) InitialState() any             { return 0 }

func (o *KeyedSumOp) CallbackInfo(name string) (types.CallbackInfo, bool) {
	if name != "process" {
		return types.CallbackInfo{}, false
	}
	return types.CallbackInfo{ReadsState: true, WritesState: true, Emits: true}, true
}

func (o *KeyedSumOp) Call(name string, state any, cfg any, args []any) (types.CallbackResult, error) {
	if name != "process" {
		return types.CallbackResult{}, types.ErrUnknownCallback
	}
	var v any
	if len(args) > 0 {
		v = args[0]
	}
	n, _ := v.(int)
	sum, _ := state.(int)
	sum += n

	o.mu.Lock()
	o.sums[o.keyFunc(v)] = sum
	o.mu.Unlock()

	return types.CallbackResult{State: sum, HasState: true, Emit: map[string][]any{"out": {sum}}}, nil
}

// Sums returns a snapshot of the running sum per key.
func (o *KeyedSumOp) Sums() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int, len(o.sums))
	for k, v := range o.sums {
		out[k] = v
	}
	return out
}

// CounterOp increments a per-worker counter on every message, publishing
// each new value to rec, and deliberately crashes (returns an error
// without publishing or updating state) the one time the counter would
// reach failOn. It exists to drive the worker-restart path: after the
// crash, the owning WorkerSup respawns it with fresh initial state, so the
// published sequence restarts from 1.
type CounterOp struct {
	rec    *Recorder
	failOn int
}

// NewCounterOp builds a CounterOp that crashes once, when its internal
// count would reach failOn (0 disables the crash).
func NewCounterOp(rec *Recorder, failOn int) *CounterOp {
	return &CounterOp{rec: rec, failOn: failOn}
}

func (o *CounterOp) InPorts() []string             { return []string{"in"} }
func (o *CounterOp) OutPorts() []string            { return nil }
func (o *CounterOp) DefaultStrategy() types.Strategy { return nil }
func (o *CounterOp) InitialState() any             { return 0 }

func (o *CounterOp) CallbackInfo(name string) (types.CallbackInfo, bool) {
	if name != "process" {
		return types.CallbackInfo{}, false
	}
	return types.CallbackInfo{ReadsState: true, WritesState: true}, true
}

func (o *CounterOp) Call(name string, state any, cfg any, args []any) (types.CallbackResult, error) {
	if name != "process" {
		return types.CallbackResult{}, types.ErrUnknownCallback
	}
	count, _ := state.(int)
	count++
	if o.failOn > 0 && count == o.failOn {
		return types.CallbackResult{}, fmt.Errorf("counter: forced crash at %d", count)
	}
	o.rec.Record(count)
	return types.CallbackResult{State: count, HasState: true}, nil
}

// FailingDeploy is a types.Strategy whose Deploy hook always fails,
// standing in for a strategy bug discovered mid-rollout.
type FailingDeploy struct{}

func (FailingDeploy) Deploy(ctx *types.Context) (any, error) {
	return nil, fmt.Errorf("framework: forced deploy failure at node %d", ctx.Runtime.NodeIndex)
}

func (FailingDeploy) Deliver(ctx *types.Context, value any, inPort int) error {
	return fmt.Errorf("framework: FailingDeploy has no live deployment")
}

func (FailingDeploy) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	return types.PartialResult{}, fmt.Errorf("framework: FailingDeploy has no live deployment")
}

// FanOutDeployment records where each of FanOutDeploy's N spawned workers
// landed, so a test can inspect placement spread without reaching into an
// unexported strategy-internal deployment type.
type FanOutDeployment struct {
	Refs []worker.Ref
}

// FanOutDeploy is a types.Strategy that spawns N workers via
// supervisor.CreateRemote with random placement, exercising the same
// fan-out §4.4 uses for create_remote-backed sources, but exposing its
// resulting refs for assertions.
type FanOutDeploy struct {
	strategy.Deps
	N int
}

// NewFanOutDeploy builds a FanOutDeploy that spawns n workers on deploy.
func NewFanOutDeploy(d strategy.Deps, n int) *FanOutDeploy {
	return &FanOutDeploy{Deps: d, N: n}
}

func (s *FanOutDeploy) Deploy(ctx *types.Context) (any, error) {
	refs := make([]worker.Ref, 0, s.N)
	for i := 0; i < s.N; i++ {
		ref, err := supervisor.CreateRemote(s.RT, ctx, "fanout", supervisor.Placement{Kind: supervisor.PlaceRandom})
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return &FanOutDeployment{Refs: refs}, nil
}

func (s *FanOutDeploy) Deliver(ctx *types.Context, value any, inPort int) error {
	return fmt.Errorf("framework: fan_out has no in-ports")
}

func (s *FanOutDeploy) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	return types.PartialResult{}, fmt.Errorf("framework: fan_out workers never receive ticks")
}
