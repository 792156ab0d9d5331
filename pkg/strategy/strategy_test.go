package strategy

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/pkg/worker"
)

// countingOp accumulates every delivered int into its state and emits it
// unchanged on "out".
type countingOp struct{}

func (countingOp) InPorts() []string               { return []string{"in"} }
func (countingOp) OutPorts() []string              { return []string{"out"} }
func (countingOp) DefaultStrategy() types.Strategy { return nil }
func (countingOp) InitialState() any               { return 0 }
func (countingOp) CallbackInfo(name string) (types.CallbackInfo, bool) {
	if name == "process" {
		return types.CallbackInfo{ReadsState: true, WritesState: true, Emits: true}, true
	}
	return types.CallbackInfo{}, false
}
func (countingOp) Call(name string, state any, _ any, args []any) (types.CallbackResult, error) {
	if name != "process" {
		return types.CallbackResult{}, types.ErrUnknownCallback
	}
	cur, _ := state.(int)
	n, _ := args[0].(int)
	return types.CallbackResult{
		State:    cur + n,
		HasState: true,
		Emit:     map[string][]any{"out": {n}},
	}, nil
}

func newTestDeps(t *testing.T, selfAddr string) Deps {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "store.db"), nil)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	rt := cluster.New(cluster.ModeTest, selfAddr, nil, nil)
	return Deps{RT: rt, Reg: supervisor.NewRegistry(), Store: s}
}

// publishTopology seeds the store + registry the way deploy.Deployer does
// before running a node's Deploy hook, so supervisor.CreateLocal (which
// resolves its own Context back out of the store) has something to find.
func publishTopology(t *testing.T, d Deps, ref string, idx int, op types.Operation, strat types.Strategy, args any) {
	t.Helper()
	d.Reg.Ensure(ref)
	d.Store.Put("topology", ref, &types.FlatNode{Index: idx, Operation: op, Strategy: strat, Args: args})
}

func testContext(d Deps, op types.Operation, strat types.Strategy, args any) *types.Context {
	return &types.Context{
		Operation: op,
		Strategy:  strat,
		Args:      args,
		Runtime:   types.RuntimeRef{WorkflowRef: "wf-1", NodeIndex: 0, Phase: types.PhaseRun},
		Store:     d.Store,
	}
}

func TestCallOperationProcessForwardsStateAndEmit(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20001")
	ctx := testContext(d, countingOp{}, nil, nil)

	pr, err := callOperationProcess(ctx, countingOp{}, 10, 5)
	if err != nil {
		t.Fatalf("callOperationProcess() error = %v", err)
	}
	if !pr.HasState || pr.State != 15 {
		t.Errorf("State = %v, HasState = %v, want 15, true", pr.State, pr.HasState)
	}
	if !pr.HasEmit || len(pr.Emit["out"]) != 1 || pr.Emit["out"][0] != 5 {
		t.Errorf("Emit = %v, want {out: [5]}", pr.Emit)
	}
}

func TestImmutableLocalDeployCreatesLocalRef(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20011")
	s := NewImmutableLocal(d)
	ctx := testContext(d, countingOp{}, s, nil)
	publishTopology(t, d, "wf-1", 0, countingOp{}, s, nil)

	depAny, err := s.Deploy(ctx)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	dep, ok := depAny.(*immutableDeployment)
	if !ok {
		t.Fatalf("Deploy() returned %T, want *immutableDeployment", depAny)
	}
	if _, ok := dep.Refs[d.RT.SelfAddr]; !ok {
		t.Error("Deploy() deployment has no ref for the local node")
	}
}

func TestImmutableLocalDeliverSendsToLocalRef(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20021")
	s := NewImmutableLocal(d)
	wctx := &types.Context{Operation: countingOp{}, Strategy: s}
	ref := worker.Spawn("w1", countingOp{}, s, "immutable", wctx, nil)
	ref.DeployComplete()

	dep := &immutableDeployment{Refs: map[string]worker.Ref{d.RT.SelfAddr: ref}}
	ctx := testContext(d, countingOp{}, s, nil)
	ctx.Deployment = dep

	if err := s.Deliver(ctx, 7, 0); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	ref.Stop()
	select {
	case <-ref.Done():
	default:
	}
}

func TestImmutableLocalDeliverMissingDeploymentErrors(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20031")
	s := NewImmutableLocal(d)
	ctx := testContext(d, countingOp{}, s, nil)

	if err := s.Deliver(ctx, 1, 0); err == nil {
		t.Error("Deliver() with no deployment set, want error")
	}
}

func TestKeyedStateDeployRequiresKeyedArgs(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20041")
	s := NewKeyedState(d)
	ctx := testContext(d, countingOp{}, s, "not-keyed-args")

	if _, err := s.Deploy(ctx); err == nil {
		t.Error("Deploy() with non-KeyedArgs args, want error")
	}
}

func TestKeyedStateDeployWithKeyedArgsSucceeds(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20051")
	s := NewKeyedState(d)
	args := KeyedArgs{KeyFunc: func(v any) string { return fmt.Sprint(v) }}
	ctx := testContext(d, countingOp{}, s, args)

	depAny, err := s.Deploy(ctx)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	dep, ok := depAny.(*keyedDeployment)
	if !ok || dep.Workers == nil {
		t.Fatalf("Deploy() = %T, want an initialised *keyedDeployment", depAny)
	}
}

func TestKeyedStateDeliverReusesExistingWorkerForSameKey(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20061")
	s := NewKeyedState(d)
	args := KeyedArgs{KeyFunc: func(v any) string { return fmt.Sprint(v) }}

	wctx := &types.Context{Operation: countingOp{}, Strategy: s}
	ref := worker.Spawn("w-keyed", countingOp{}, s, "keyed:a", wctx, nil)
	ref.DeployComplete()

	dep := &keyedDeployment{Workers: map[string]worker.Ref{"a": ref}}
	ctx := testContext(d, countingOp{}, s, args)
	ctx.Deployment = dep

	if err := s.Deliver(ctx, "a", 0); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(dep.Workers) != 1 {
		t.Errorf("Workers after Deliver for an already-keyed value = %d, want 1 (no new worker spawned)", len(dep.Workers))
	}

	ref.Stop()
}

func TestKeyedStateDeliverMissingDeploymentErrors(t *testing.T) {
	d := newTestDeps(t, "127.0.0.1:20071")
	s := NewKeyedState(d)
	args := KeyedArgs{KeyFunc: func(v any) string { return fmt.Sprint(v) }}
	ctx := testContext(d, countingOp{}, s, args)

	if err := s.Deliver(ctx, "x", 0); err == nil {
		t.Error("Deliver() with no deployment set, want error")
	}
}
