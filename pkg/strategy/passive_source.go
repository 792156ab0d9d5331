package strategy

import (
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

func init() {
	gob.Register(&passiveDeployment{})
}

// PassiveSource spawns nothing at deploy time; its worker is created
// lazily the first time external code pushes a value in, for sources
// driven by outside RPC rather than a stream.
type PassiveSource struct{ Deps }

// NewPassiveSource builds a PassiveSource strategy.
func NewPassiveSource(d Deps) *PassiveSource { return &PassiveSource{d} }

type passiveDeployment struct {
	mu  sync.Mutex
	Ref worker.Ref
	Has bool
}

func (s *PassiveSource) Deploy(ctx *types.Context) (any, error) {
	return &passiveDeployment{}, nil
}

func (s *PassiveSource) resolveRef(ctx *types.Context) (worker.Ref, error) {
	dep, ok := ctx.Deployment.(*passiveDeployment)
	if !ok {
		return worker.Ref{}, fmt.Errorf("strategy: passive_source: missing deployment")
	}
	dep.mu.Lock()
	defer dep.mu.Unlock()
	if !dep.Has {
		ref, err := supervisor.CreateLocal(s.RT, s.Reg, s.Store, ctx, "source")
		if err != nil {
			return worker.Ref{}, err
		}
		ref.DeployComplete()
		dep.Ref, dep.Has = ref, true
	}
	return dep.Ref, nil
}

// Push delivers a value from outside the workflow into the source's
// worker, resolving (and lazily creating) its Ref on first use.
func (s *PassiveSource) Push(ctx *types.Context, value any) error {
	ref, err := s.resolveRef(ctx)
	if err != nil {
		return err
	}
	ref.Send(value, nil, false)
	return nil
}

func (s *PassiveSource) Deliver(ctx *types.Context, value any, inPort int) error {
	return s.Push(ctx, value)
}

func (s *PassiveSource) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	return callOperationProcess(ctx, ctx.Operation, state, msg.Value)
}
