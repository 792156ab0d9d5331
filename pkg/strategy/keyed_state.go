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
	gob.Register(&keyedDeployment{})
	gob.Register(KeyedArgs{})
}

// KeyedArgs is the node-args shape KeyedState expects: a user-supplied
// hash function mapping a delivered value to the key it partitions on.
// gob drops func fields, so KeyFunc survives only where topology is not
// encoded (the loopback transport); a copy replicated over an encoding
// transport has KeyFunc nil.
type KeyedArgs struct {
	KeyFunc func(value any) string
}

// KeyedState spawns one worker per key, created lazily on first delivery
// for an unseen key.
type KeyedState struct{ Deps }

// NewKeyedState builds a KeyedState strategy.
func NewKeyedState(d Deps) *KeyedState { return &KeyedState{d} }

type keyedDeployment struct {
	mu      sync.Mutex
	Workers map[string]worker.Ref
}

func (s *KeyedState) Deploy(ctx *types.Context) (any, error) {
	if _, ok := ctx.Args.(KeyedArgs); !ok {
		return nil, fmt.Errorf("strategy: keyed_state: args must be KeyedArgs")
	}
	return &keyedDeployment{Workers: make(map[string]worker.Ref)}, nil
}

func (s *KeyedState) Deliver(ctx *types.Context, value any, inPort int) error {
	dep, ok := ctx.Deployment.(*keyedDeployment)
	if !ok {
		return fmt.Errorf("strategy: keyed_state: missing deployment")
	}
	args, ok := ctx.Args.(KeyedArgs)
	if !ok || args.KeyFunc == nil {
		return fmt.Errorf("strategy: keyed_state: args must be KeyedArgs with KeyFunc set")
	}
	key := args.KeyFunc(value)

	dep.mu.Lock()
	ref, ok := dep.Workers[key]
	if !ok {
		var err error
		ref, err = supervisor.CreateLocal(s.RT, s.Reg, s.Store, ctx, "keyed:"+key)
		if err != nil {
			dep.mu.Unlock()
			return err
		}
		ref.DeployComplete()
		dep.Workers[key] = ref
	}
	dep.mu.Unlock()

	ref.Send(value, ctx.Invocation, ctx.HasInvocation)
	return nil
}

func (s *KeyedState) Process(ctx *types.Context, msg types.WorkerMessage, state any, tag string) (types.PartialResult, error) {
	return callOperationProcess(ctx, ctx.Operation, state, msg.Value)
}
