package deploy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
)

// Deployer runs §4.5's eight-step sequence.
type Deployer struct {
	rt    *cluster.Runtime
	store *store.Store
	reg   *supervisor.Registry
}

// New builds a Deployer wired to this runtime's cluster, store and local
// workflow supervisor registry.
func New(rt *cluster.Runtime, s *store.Store, reg *supervisor.Registry) *Deployer {
	return &Deployer{rt: rt, store: s, reg: reg}
}

// Deploy flattens wf, spawns its supervision tree on every runtime, runs
// every node's deploy hook, publishes the deployment record, and releases
// every worker held in initialising. Any step failing unwinds everything
// done so far and returns the error: ensure_node_sup failures wrapped with
// the failing node's address, deploy-hook failures (including a recovered
// panic) wrapped in a types.StrategyError.
func (d *Deployer) Deploy(wf *types.Workflow) (*types.FlatWorkflow, string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DeployDuration)

	ref := uuid.NewString()
	logger := log.WithWorkflowRef(ref)

	flat, err := flatten(wf)
	if err != nil {
		return nil, "", err
	}

	var compensations []func()
	rollback := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}

	// Step 3: spawn a NodeWorkerSup for this ref on every runtime.
	d.reg.Ensure(ref)
	compensations = append(compensations, func() { d.reg.CollapseWorkflow(ref) })

	for _, res := range d.rt.OnAllWorkers("supervisor.ensure_node_sup", supervisor.RefRequest{WorkflowRef: ref}) {
		if res.Err != nil {
			logger.Error().Str("node", res.Addr).Err(res.Err).Msg("ensure_node_sup failed")
			rollback()
			return nil, "", fmt.Errorf("deploy: ensure_node_sup on %s: %w", res.Addr, res.Err)
		}
	}
	compensations = append(compensations, func() {
		d.rt.OnAllWorkers("supervisor.collapse_workflow", supervisor.RefRequest{WorkflowRef: ref})
	})

	// Distribute the flattened topology itself, so every runtime can
	// rebuild a node's Context locally for dynamically created workers.
	topologyItems := make([]any, len(flat.Nodes))
	for i, n := range flat.Nodes {
		topologyItems[i] = n
	}
	d.store.PutEverywhere("topology", ref, topologyItems...)
	compensations = append(compensations, func() { d.store.PutEverywhere("topology", ref) })

	// Step 4: run every node's deploy hook.
	deployments := make([]any, len(flat.Nodes))
	for i, node := range flat.Nodes {
		ctx := &types.Context{
			Operation: node.Operation,
			Strategy:  node.Strategy,
			Args:      node.Args,
			Runtime:   types.RuntimeRef{WorkflowRef: ref, NodeIndex: i, Phase: types.PhaseDeploy},
			Store:     d.store,
		}
		dep, err := func() (dep any, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("deploy: strategy panicked: %v", p)
				}
			}()
			return node.Strategy.Deploy(ctx)
		}()
		if err != nil {
			logger.Error().Int("node_index", i).Err(err).Msg("strategy.deploy failed")
			rollback()
			return nil, "", types.NewStrategyError(ctx, err)
		}
		deployments[i] = dep
	}

	// Step 5: publish the deployment record.
	d.store.PutEverywhere("deployment", ref, deployments...)
	compensations = append(compensations, func() { d.store.Put("deployment", ref) })

	// Step 6: build and publish the per-node link table.
	linkItems := make([]any, len(flat.Nodes))
	for i, node := range flat.Nodes {
		lm := make(map[string][]types.ResolvedLink, len(node.Links))
		for port, dests := range node.Links {
			for _, l := range dests {
				downstream := flat.Nodes[l.NodeIndex]
				dctx := &types.Context{
					Operation:  downstream.Operation,
					Strategy:   downstream.Strategy,
					Args:       downstream.Args,
					Deployment: deployments[l.NodeIndex],
					Runtime:    types.RuntimeRef{WorkflowRef: ref, NodeIndex: l.NodeIndex, Phase: types.PhaseRun},
					Store:      d.store,
				}
				lm[port] = append(lm[port], types.ResolvedLink{Ctx: dctx, InPort: l.InPort})
			}
		}
		linkItems[i] = lm
	}
	d.store.PutEverywhere("links", ref, linkItems...)

	// Step 7: release every worker held in initialising.
	d.reg.DeployComplete(ref)
	d.rt.OnAllWorkers("supervisor.deploy_complete", supervisor.RefRequest{WorkflowRef: ref})

	metrics.WorkflowsDeployed.Inc()
	logger.Info().Int("nodes", len(flat.Nodes)).Msg("deployed")
	return flat, ref, nil
}
