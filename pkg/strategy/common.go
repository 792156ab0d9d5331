package strategy

import (
	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
)

// Deps is what every built-in strategy needs injected: Go has no runtime
// apply(module, function, args), so strategies carry their own handle on
// the cluster, the local supervisor registry and the store instead of
// reaching for ambient globals.
type Deps struct {
	RT    *cluster.Runtime
	Reg   *supervisor.Registry
	Store *store.Store
}

// callOperationProcess calls the operation's "process" callback and
// translates its CallbackResult into the PartialResult a Strategy.Process
// implementation returns, the common tail end of every built-in strategy
// that just forwards values into the operation unchanged.
func callOperationProcess(ctx *types.Context, op types.Operation, state any, value any) (types.PartialResult, error) {
	result, err := op.Call("process", state, ctx.Args, []any{value})
	if err != nil {
		return types.PartialResult{}, err
	}
	pr := types.PartialResult{}
	if result.HasState {
		if info, ok := op.CallbackInfo("process"); ok && !info.WritesState {
			return types.PartialResult{}, types.NewStrategyError(ctx, types.ErrWriteWithoutPermission)
		}
		pr.State = result.State
		pr.HasState = true
	}
	if result.Emit != nil {
		pr.Emit = result.Emit
		pr.HasEmit = true
	}
	return pr, nil
}
