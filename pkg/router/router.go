package router

import (
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/types"
)

func nodeLinks(ctx *types.Context) (map[string][]types.ResolvedLink, bool) {
	raw, ok := ctx.Store.GetIndexed("links", ctx.Runtime.WorkflowRef, ctx.Runtime.NodeIndex)
	if !ok {
		return nil, false
	}
	links, ok := raw.(map[string][]types.ResolvedLink)
	return links, ok
}

// Deliver runs the algorithm of §4.6: for each emitted port, look up its
// pre-built destinations and call each one's strategy.Deliver in turn.
// Ports with no outgoing link are silently dropped.
func Deliver(ctx *types.Context, emit map[string][]any) error {
	if ctx.Runtime.Phase == types.PhaseDeploy {
		return types.ErrEmitDuringDeploy
	}
	links, ok := nodeLinks(ctx)
	if !ok {
		return nil
	}
	for port, values := range emit {
		dsts := links[port]
		if len(dsts) == 0 {
			metrics.MessagesDropped.WithLabelValues(port).Add(float64(len(values)))
			continue
		}
		for _, v := range values {
			for _, dst := range dsts {
				if err := dst.Ctx.Strategy.Deliver(dst.Ctx, v, dst.InPort); err != nil {
					return err
				}
				metrics.MessagesDelivered.WithLabelValues(port).Inc()
			}
		}
	}
	return nil
}

// DeliverInvocation is Deliver's emit_invocation variant: each value
// carries its own invocation metadata instead of inheriting the sender's.
func DeliverInvocation(ctx *types.Context, values []types.EmitValue) error {
	if ctx.Runtime.Phase == types.PhaseDeploy {
		return types.ErrEmitDuringDeploy
	}
	links, ok := nodeLinks(ctx)
	if !ok {
		return nil
	}
	for _, ev := range values {
		dsts := links[ev.Port]
		if len(dsts) == 0 {
			continue
		}
		for _, dst := range dsts {
			dstCtx := dst.Ctx.WithInvocation(ev.Invocation, ev.HasInvocation)
			if err := dst.Ctx.Strategy.Deliver(dstCtx, ev.Value, dst.InPort); err != nil {
				return err
			}
		}
	}
	return nil
}
