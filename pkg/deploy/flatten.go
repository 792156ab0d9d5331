package deploy

import (
	"fmt"
	"strings"

	"github.com/cuemby/fluxion/pkg/types"
)

// flatten walks a possibly-nested Workflow depth-first, concatenating
// sub-workflow name prefixes with "/" to avoid collisions, and assigns
// dense indices in traversal order (§4.5's index stability property).
func flatten(wf *types.Workflow) (*types.FlatWorkflow, error) {
	type item struct {
		prefix string
		parent string
		spec   *types.NodeSpec
	}
	var order []item

	var walk func(prefix string, nodes []*types.NodeSpec)
	walk = func(prefix string, nodes []*types.NodeSpec) {
		for _, n := range nodes {
			full := n.Name
			if prefix != "" {
				full = prefix + "/" + n.Name
			}
			if n.SubWorkflow != nil {
				walk(full, n.SubWorkflow.Nodes)
				continue
			}
			order = append(order, item{prefix: full, parent: prefix, spec: n})
		}
	}
	walk("", wf.Nodes)

	nameIndex := make(map[string]int, len(order))
	for i, it := range order {
		nameIndex[it.prefix] = i
	}

	flat := &types.FlatWorkflow{Nodes: make([]*types.FlatNode, len(order))}
	for i, it := range order {
		strat := it.spec.Strategy
		if strat == nil {
			strat = it.spec.Operation.DefaultStrategy()
		}
		if strat == nil {
			return nil, fmt.Errorf("deploy: node %q: %w", it.prefix, types.ErrMissingStrategy)
		}
		flat.Nodes[i] = &types.FlatNode{
			Index:     i,
			Name:      it.prefix,
			Operation: it.spec.Operation,
			Strategy:  strat,
			Args:      it.spec.Args,
			Links:     make(map[string][]types.Link),
		}
	}

	for i, it := range order {
		for port, dests := range it.spec.Links {
			for _, d := range dests {
				idx, ok := resolveName(nameIndex, it.parent, d.Node)
				if !ok {
					return nil, fmt.Errorf("deploy: node %q: unknown link destination %q", it.prefix, d.Node)
				}
				inPort := types.InPortIndex(flat.Nodes[idx].Operation, d.InPort)
				if inPort < 0 {
					return nil, fmt.Errorf("deploy: node %q: %q has no in-port %q", it.prefix, d.Node, d.InPort)
				}
				flat.Nodes[i].Links[port] = append(flat.Nodes[i].Links[port], types.Link{NodeIndex: idx, InPort: inPort})
			}
		}
	}
	return flat, nil
}

// resolveName looks a link destination up first as a fully-qualified
// path, then relative to the referencing node's own sub-workflow prefix.
func resolveName(nameIndex map[string]int, parent, name string) (int, bool) {
	if idx, ok := nameIndex[name]; ok {
		return idx, true
	}
	if parent == "" {
		return 0, false
	}
	if strings.HasPrefix(name, parent+"/") {
		return 0, false
	}
	idx, ok := nameIndex[parent+"/"+name]
	return idx, ok
}
