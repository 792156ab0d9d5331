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
	gob.Register(&streamDeployment{})
}

// StreamArgs is the node-args shape StreamSource expects: Next pulls the
// next value from a (possibly lazy) enumerable, returning ok=false once
// exhausted. gob drops func fields, so Next survives only where topology
// is not encoded (the loopback transport); a copy replicated over an
// encoding transport has Next nil.
type StreamArgs struct {
	Next func() (value any, ok bool)
}

// NewStreamArgsFromSlice builds StreamArgs iterating a fixed slice,
// covering the common "[1, 2, 3]" producer case.
func NewStreamArgsFromSlice(values []any) StreamArgs {
	i := 0
	return StreamArgs{Next: func() (any, bool) {
		if i >= len(values) {
			return nil, false
		}
		v := values[i]
		i++
		return v, true
	}}
}

// pullSignal is StreamSource's self-addressed message driving its loop.
type pullSignal struct{}

// StreamSource spawns one worker at deploy time that iterates its args'
// enumerable, emitting each value in turn, then stops.
type StreamSource struct{ Deps }

// NewStreamSource builds a StreamSource strategy.
func NewStreamSource(d Deps) *StreamSource { return &StreamSource{d} }

type streamDeployment struct {
	Ref worker.Ref
}

func (s *StreamSource) Deploy(ctx *types.Context) (any, error) {
	if _, ok := ctx.Args.(StreamArgs); !ok {
		return nil, fmt.Errorf("strategy: stream_source: args must be StreamArgs")
	}
	ref, err := supervisor.CreateLocal(s.RT, s.Reg, s.Store, ctx, "stream")
	if err != nil {
		return nil, err
	}
	go kickoffWhenReady(ref, pullSignal{})
	return &streamDeployment{Ref: ref}, nil
}

func (s *StreamSource) Deliver(ctx *types.Context, value any, inPort int) error {
	return fmt.Errorf("strategy: stream_source: has no in-ports")
}

func (s *StreamSource) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	dep, ok := ctx.Deployment.(*streamDeployment)
	if !ok {
		return types.PartialResult{}, fmt.Errorf("strategy: stream_source: missing deployment")
	}
	args, ok := ctx.Args.(StreamArgs)
	if !ok || args.Next == nil {
		return types.PartialResult{}, fmt.Errorf("strategy: stream_source: args must be StreamArgs with Next set")
	}

	v, more := args.Next()
	if !more {
		dep.Ref.Stop()
		return types.PartialResult{}, nil
	}

	result, err := callOperationProcess(ctx, ctx.Operation, state, v)
	if err != nil {
		return result, err
	}
	dep.Ref.Send(pullSignal{}, nil, false)
	return result, nil
}

// kickoffWhenReady sends an initial signal to ref once it leaves
// initialising, unblocking a freshly-deployed source worker. Only
// meaningful for a local ref; a ref without a local worker always reports
// StateInitialising, so for such a ref this goroutine never sends and
// never exits.
func kickoffWhenReady(ref worker.Ref, signal any) {
	for {
		switch ref.State() {
		case worker.StateReady:
			ref.Send(signal, nil, false)
			return
		case worker.StateStopped:
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
