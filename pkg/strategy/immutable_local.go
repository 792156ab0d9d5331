package strategy

import (
	"encoding/gob"
	"fmt"

	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

func init() {
	gob.Register(&immutableDeployment{})
}

// ImmutableLocal spawns one worker per cluster runtime at deploy time and
// forwards every delivered value to the local instance, the default for
// stateless one-in-one-out operations.
type ImmutableLocal struct{ Deps }

// NewImmutableLocal builds an ImmutableLocal strategy.
func NewImmutableLocal(d Deps) *ImmutableLocal { return &ImmutableLocal{d} }

type immutableDeployment struct {
	Refs map[string]worker.Ref // node address -> local worker
}

func (s *ImmutableLocal) Deploy(ctx *types.Context) (any, error) {
	refs := make(map[string]worker.Ref)

	localRef, err := supervisor.CreateLocal(s.RT, s.Reg, s.Store, ctx, "immutable")
	if err != nil {
		return nil, err
	}
	refs[s.RT.SelfAddr] = localRef

	req := supervisor.CreateLocalRequest{WorkflowRef: ctx.Runtime.WorkflowRef, NodeIndex: ctx.Runtime.NodeIndex, Tag: "immutable"}
	for _, res := range s.RT.OnAllWorkers("supervisor.create_local", req) {
		if res.Err != nil {
			return nil, fmt.Errorf("strategy: immutable_local: create_local on %s: %w", res.Addr, res.Err)
		}
		reply, ok := res.Value.(supervisor.CreateLocalReply)
		if !ok {
			return nil, fmt.Errorf("strategy: immutable_local: malformed reply from %s", res.Addr)
		}
		refs[res.Addr] = worker.Ref{ID: reply.ID, Node: res.Addr}
	}

	return &immutableDeployment{Refs: refs}, nil
}

func (s *ImmutableLocal) Deliver(ctx *types.Context, value any, inPort int) error {
	dep, ok := ctx.Deployment.(*immutableDeployment)
	if !ok {
		return fmt.Errorf("strategy: immutable_local: missing deployment")
	}
	ref, ok := dep.Refs[s.RT.SelfAddr]
	if !ok {
		for _, r := range dep.Refs {
			ref = r
			break
		}
	}
	ref.Send(value, ctx.Invocation, ctx.HasInvocation)
	return nil
}

func (s *ImmutableLocal) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	return callOperationProcess(ctx, ctx.Operation, state, msg.Value)
}
