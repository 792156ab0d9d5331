package strategy

import (
	"encoding/gob"
	"fmt"
	"time"

	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

func init() {
	gob.Register(&activeDeployment{})
}

// ActiveArgs is the node-args shape ActiveSource expects. gob drops func
// fields, so Poll survives only where topology is not encoded (the
// loopback transport); a copy replicated over an encoding transport has
// Poll nil.
type ActiveArgs struct {
	Parallelism int
	Interval    time.Duration
	Poll        func() (value any, ok bool)
}

// tickSignal is ActiveSource's self-addressed timer message.
type tickSignal struct{}

// ActiveSource spawns one worker per requested parallelism, each actively
// polling an external source on a timer, grounding the "one worker per
// core" fan-out of create_remote with no tag.
type ActiveSource struct{ Deps }

// NewActiveSource builds an ActiveSource strategy.
func NewActiveSource(d Deps) *ActiveSource { return &ActiveSource{d} }

type activeDeployment struct {
	Refs []worker.Ref
}

func (s *ActiveSource) Deploy(ctx *types.Context) (any, error) {
	args, ok := ctx.Args.(ActiveArgs)
	if !ok || args.Poll == nil {
		return nil, fmt.Errorf("strategy: active_source: args must be ActiveArgs with Poll set")
	}
	n := args.Parallelism
	if n <= 0 {
		n = 1
	}
	interval := args.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	refs := make([]worker.Ref, 0, n)
	for i := 0; i < n; i++ {
		ref, err := supervisor.CreateRemote(s.RT, ctx, "active", supervisor.Placement{Kind: supervisor.PlaceRandom})
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		go driveTicks(ref, interval)
	}

	return &activeDeployment{Refs: refs}, nil
}

func (s *ActiveSource) Deliver(ctx *types.Context, value any, inPort int) error {
	return fmt.Errorf("strategy: active_source: has no in-ports")
}

func (s *ActiveSource) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	args, ok := ctx.Args.(ActiveArgs)
	if !ok || args.Poll == nil {
		return types.PartialResult{}, fmt.Errorf("strategy: active_source: args must be ActiveArgs with Poll set")
	}
	v, ok := args.Poll()
	if !ok {
		return types.PartialResult{}, nil
	}
	return callOperationProcess(ctx, ctx.Operation, state, v)
}

// driveTicks sends a tickSignal to ref on every interval until it stops.
// For a ref holding a local worker, Done() fires the moment it does; a ref
// returned by CreateRemote never holds one, even when placed on this
// process, so its Done() is nil and never selects and the ticker simply
// runs for the process's lifetime (undeploy stopping the worker is not
// detected here).
func driveTicks(ref worker.Ref, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ref.Send(tickSignal{}, nil, false)
		case <-ref.Done():
			return
		}
	}
}
