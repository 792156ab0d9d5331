package supervisor

import (
	"fmt"

	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/types"
)

// ResolveContext rebuilds a node's Context locally from the constant
// store, used whenever a worker is created after deploy time (dynamic
// create_remote/create_local calls from strategy code) rather than
// received directly from the Deployer. "topology" carries the flattened
// node table (operation, strategy, args) alongside "deployment", since a
// freshly-joined or remotely-targeted node only has what the store
// replays to it.
func ResolveContext(s *store.Store, ref string, idx int, phase types.Phase) (*types.Context, error) {
	rawNode, ok := s.GetIndexed("topology", ref, idx)
	if !ok {
		return nil, fmt.Errorf("supervisor: no topology for %s[%d]", ref, idx)
	}
	node, ok := rawNode.(*types.FlatNode)
	if !ok {
		return nil, fmt.Errorf("supervisor: malformed topology entry for %s[%d]", ref, idx)
	}

	deployment, _ := s.GetIndexed("deployment", ref, idx)

	return &types.Context{
		Operation:  node.Operation,
		Strategy:   node.Strategy,
		Args:       node.Args,
		Deployment: deployment,
		Runtime:    types.RuntimeRef{WorkflowRef: ref, NodeIndex: idx, Phase: phase},
		Store:      s,
	}, nil
}
