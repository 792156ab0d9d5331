package supervisor

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"sync"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

// NodeWorkerSup owns one WorkerSup per flattened node index, for one
// workflow, on one physical runtime. Restarts are one_for_one with
// max_restarts=0: once collapsed, it never respawns (§4.4).
type NodeWorkerSup struct {
	WorkflowRef string

	mu       sync.Mutex
	children map[int]*WorkerSup
}

// NewNodeWorkerSup creates an empty supervisor for a workflow.
func NewNodeWorkerSup(ref string) *NodeWorkerSup {
	return &NodeWorkerSup{WorkflowRef: ref, children: make(map[int]*WorkerSup)}
}

// Child returns (creating if absent) the WorkerSup for flattened node idx,
// running on the physical runtime at selfAddr.
func (n *NodeWorkerSup) Child(idx int, selfAddr string) *WorkerSup {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[idx]
	if !ok {
		c = NewWorkerSup(n.WorkflowRef, selfAddr, idx)
		n.children[idx] = c
	}
	return c
}

// Collapse tears down every WorkerSup under this workflow on this
// runtime. A persistent node failure is expected to trigger this rather
// than individual restarts, per §4.4.
func (n *NodeWorkerSup) Collapse() {
	n.mu.Lock()
	children := make([]*WorkerSup, 0, len(n.children))
	for idx, c := range n.children {
		children = append(children, c)
		metrics.NodeSupervisorCollapses.WithLabelValues(itoa(idx)).Inc()
	}
	n.mu.Unlock()
	for _, c := range children {
		c.Collapse()
	}
}

// PlacementKind selects one of §4.4's create_remote placement policies.
type PlacementKind int

const (
	PlaceRandom PlacementKind = iota
	PlaceOn
	PlaceWith
	PlaceAvoid
	PlaceTagged
	PlaceLocal
)

// Placement parameterises create_remote's target-node selection.
type Placement struct {
	Kind PlacementKind
	Node string // PlaceOn
	Ref  string // PlaceWith / PlaceAvoid: a worker id
	Tag  string // PlaceTagged
}

// nodeOf tracks which cluster member address a worker id was created on,
// so PlaceWith/PlaceAvoid can resolve "the same node as ref".
var (
	nodeOfMu sync.RWMutex
	nodeOf   = map[string]string{}
)

func recordNode(workerID, addr string) {
	nodeOfMu.Lock()
	nodeOf[workerID] = addr
	nodeOfMu.Unlock()
}

func lookupNode(workerID string) (string, bool) {
	nodeOfMu.RLock()
	defer nodeOfMu.RUnlock()
	addr, ok := nodeOf[workerID]
	return addr, ok
}

// CreateLocalRequest is the wire envelope for a remote create_local call.
type CreateLocalRequest struct {
	WorkflowRef string
	NodeIndex   int
	Tag         string
	ID          string
}

// CreateLocalReply carries back the spawned worker's id, so the caller
// can record node placement for future PlaceWith/PlaceAvoid lookups.
type CreateLocalReply struct {
	ID string
}

// RefRequest carries just a workflow ref, for the ensure/deploy_complete/
// collapse RPCs that don't need anything else.
type RefRequest struct {
	WorkflowRef string
}

func init() {
	gob.Register(CreateLocalRequest{})
	gob.Register(CreateLocalReply{})
	gob.Register(RefRequest{})
}

// Registry is the WorkflowWorkerSup of §4.4: the one process-wide
// supervisor holding one NodeWorkerSup child per deployed workflow on this
// runtime.
type Registry struct {
	mu   sync.Mutex
	sups map[string]*NodeWorkerSup
}

// NewRegistry creates an empty per-process NodeWorkerSup registry.
func NewRegistry() *Registry { return &Registry{sups: make(map[string]*NodeWorkerSup)} }

// Ensure returns (creating if absent) the NodeWorkerSup for ref.
func (r *Registry) Ensure(ref string) *NodeWorkerSup {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sups[ref]
	if !ok {
		s = NewNodeWorkerSup(ref)
		r.sups[ref] = s
	}
	return s
}

// Get returns the NodeWorkerSup for ref, if one exists on this runtime.
func (r *Registry) Get(ref string) (*NodeWorkerSup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sups[ref]
	return s, ok
}

// Remove drops ref's NodeWorkerSup without collapsing it (the caller is
// expected to have already called Collapse if that is desired).
func (r *Registry) Remove(ref string) {
	r.mu.Lock()
	delete(r.sups, ref)
	r.mu.Unlock()
}

// Len reports how many workflows have a live NodeWorkerSup on this runtime.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sups)
}

// DeployComplete releases every worker currently held in initialising for
// ref, flipping them to ready (§4.5 step 7).
func (r *Registry) DeployComplete(ref string) {
	sup, ok := r.Get(ref)
	if !ok {
		return
	}
	sup.mu.Lock()
	children := make([]*WorkerSup, 0, len(sup.children))
	for _, c := range sup.children {
		children = append(children, c)
	}
	sup.mu.Unlock()

	for _, c := range children {
		for _, ref := range c.Refs() {
			ref.DeployComplete()
		}
	}
}

// CollapseWorkflow tears down and forgets ref's NodeWorkerSup on this
// runtime, used both by deploy-time rollback and by Undeploy.
func (r *Registry) CollapseWorkflow(ref string) {
	sup, ok := r.Get(ref)
	if ok {
		sup.Collapse()
	}
	r.Remove(ref)
}

// RegisterHandlers wires the create_local RPC onto rt, answered against
// reg and s.
func RegisterHandlers(rt *cluster.Runtime, reg *Registry, s *store.Store) {
	rt.RegisterHandler("supervisor.create_local", func(args any) (any, error) {
		req, ok := args.(CreateLocalRequest)
		if !ok {
			return nil, fmt.Errorf("supervisor: malformed create_local request")
		}
		ref, err := createLocal(reg, s, req.WorkflowRef, rt.SelfAddr, req.NodeIndex, req.Tag, req.ID)
		if err != nil {
			return nil, err
		}
		return CreateLocalReply{ID: ref.ID}, nil
	})

	rt.RegisterHandler("supervisor.ensure_node_sup", func(args any) (any, error) {
		req, ok := args.(RefRequest)
		if !ok {
			return nil, fmt.Errorf("supervisor: malformed ensure_node_sup request")
		}
		reg.Ensure(req.WorkflowRef)
		return nil, nil
	})

	rt.RegisterHandler("supervisor.deploy_complete", func(args any) (any, error) {
		req, ok := args.(RefRequest)
		if !ok {
			return nil, fmt.Errorf("supervisor: malformed deploy_complete request")
		}
		reg.DeployComplete(req.WorkflowRef)
		return nil, nil
	})

	rt.RegisterHandler("supervisor.collapse_workflow", func(args any) (any, error) {
		req, ok := args.(RefRequest)
		if !ok {
			return nil, fmt.Errorf("supervisor: malformed collapse_workflow request")
		}
		reg.CollapseWorkflow(req.WorkflowRef)
		return nil, nil
	})
}

// createLocal resolves the right WorkerSup for (ref, idx) through the
// NodeWorkerSup the Registry holds for ref and spawns under it (§4.4). selfAddr is
// folded into the auto-generated worker id so it stays unique even when
// another runtime in the same process hosts the same (ref, idx) pair.
func createLocal(reg *Registry, s *store.Store, ref, selfAddr string, idx int, tag, id string) (worker.Ref, error) {
	sup, ok := reg.Get(ref)
	if !ok {
		return worker.Ref{}, fmt.Errorf("supervisor: no NodeWorkerSup for %s on this runtime", ref)
	}
	ctx, err := ResolveContext(s, ref, idx, types.PhaseRun)
	if err != nil {
		return worker.Ref{}, err
	}
	child := sup.Child(idx, selfAddr)
	return child.Spawn(id, ctx.Operation, ctx.Strategy, tag, ctx), nil
}

// CreateLocal is the in-process form of §4.4's create_local: used when a
// strategy runs create_local directly on the runtime it is already
// executing on, without a network hop.
func CreateLocal(rt *cluster.Runtime, reg *Registry, s *store.Store, ctx *types.Context, tag string) (worker.Ref, error) {
	ref, err := createLocal(reg, s, ctx.Runtime.WorkflowRef, rt.SelfAddr, ctx.Runtime.NodeIndex, tag, "")
	if err != nil {
		return worker.Ref{}, err
	}
	ref.Node = rt.SelfAddr
	recordNode(ref.ID, rt.SelfAddr)
	return ref, nil
}

// CreateRemote implements §4.4's create_remote: choose a node per
// placement policy, then call create_local there via the cluster RPC.
func CreateRemote(rt *cluster.Runtime, ctx *types.Context, tag string, placement Placement) (worker.Ref, error) {
	var addr string
	if placement.Kind == PlaceLocal {
		if rt.Mode == cluster.ModeMaster {
			return worker.Ref{}, fmt.Errorf("supervisor: :local placement is invalid on the master")
		}
		addr = rt.SelfAddr
	} else {
		var err error
		if addr, err = resolveTarget(rt, placement); err != nil {
			return worker.Ref{}, err
		}
	}

	req := CreateLocalRequest{WorkflowRef: ctx.Runtime.WorkflowRef, NodeIndex: ctx.Runtime.NodeIndex, Tag: tag}
	res, err := rt.On(addr, "supervisor.create_local", req)
	if err != nil {
		return worker.Ref{}, fmt.Errorf("supervisor: create_remote on %s: %w", addr, err)
	}
	reply, ok := res.(CreateLocalReply)
	if !ok {
		return worker.Ref{}, fmt.Errorf("supervisor: malformed create_local reply from %s", addr)
	}
	recordNode(reply.ID, addr)
	return worker.Ref{ID: reply.ID, Node: addr}, nil
}

func resolveTarget(rt *cluster.Runtime, p Placement) (string, error) {
	members := rt.Members()
	if len(members) == 0 {
		return "", fmt.Errorf("supervisor: no worker nodes available for placement")
	}

	switch p.Kind {
	case PlaceOn:
		if p.Node == "" {
			return "", fmt.Errorf("supervisor: placement :on requires a node")
		}
		return p.Node, nil

	case PlaceWith:
		if addr, ok := lookupNode(p.Ref); ok {
			return addr, nil
		}
		return "", fmt.Errorf("supervisor: placement :with references an unknown worker %q", p.Ref)

	case PlaceAvoid:
		avoid, _ := lookupNode(p.Ref)
		candidates := make([]string, 0, len(members))
		for _, m := range members {
			if m != avoid {
				candidates = append(candidates, m)
			}
		}
		if len(candidates) == 0 {
			log.WithComponent("supervisor").Warn().Str("avoid", p.Ref).Msg("no alternative node, falling back to random")
			candidates = members
		}
		return candidates[rand.Intn(len(candidates))], nil

	case PlaceTagged:
		tagged := rt.TaggedMembers(p.Tag)
		if len(tagged) == 0 {
			log.WithComponent("supervisor").Warn().Str("tag", p.Tag).Msg("no worker with tag, falling back to any worker")
			tagged = members
		}
		return tagged[rand.Intn(len(tagged))], nil

	default: // PlaceRandom
		return members[rand.Intn(len(members))], nil
	}
}
