package supervisor

import (
	"testing"
	"time"

	"github.com/cuemby/fluxion/pkg/types"
)

type nopOp struct{}

func (nopOp) InPorts() []string               { return nil }
func (nopOp) OutPorts() []string              { return nil }
func (nopOp) DefaultStrategy() types.Strategy { return nil }
func (nopOp) InitialState() any               { return 0 }
func (nopOp) CallbackInfo(string) (types.CallbackInfo, bool) {
	return types.CallbackInfo{}, false
}
func (nopOp) Call(string, any, any, []any) (types.CallbackResult, error) {
	return types.CallbackResult{}, types.ErrUnknownCallback
}

type nopStrategy struct{}

func (nopStrategy) Deploy(*types.Context) (any, error)      { return nil, nil }
func (nopStrategy) Deliver(*types.Context, any, int) error  { return nil }
func (nopStrategy) Process(*types.Context, types.WorkerMessage, any, string) (types.PartialResult, error) {
	return types.PartialResult{}, nil
}

func TestWorkerSupNextIDUniquePerSupervisor(t *testing.T) {
	s := NewWorkerSup("wf-ref", "10.0.0.1:9000", 0)
	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := s.nextID()
		if ids[id] {
			t.Fatalf("nextID() produced a duplicate: %q", id)
		}
		ids[id] = true
	}
}

// TestWorkerSupNextIDUniqueAcrossSimulatedNodes is a regression test for the
// id-collision bug: two WorkerSups sharing the same flattened node index
// (the common case, since indices always start at 0) must never produce the
// same id, whether they belong to different workflows on one process or
// different simulated cluster members sharing one test process's globals.
func TestWorkerSupNextIDUniqueAcrossSimulatedNodes(t *testing.T) {
	master := NewWorkerSup("identity-wf", "127.0.0.1:10001", 0)
	worker := NewWorkerSup("identity-wf", "127.0.0.1:10002", 0)

	masterID := master.nextID()
	workerID := worker.nextID()

	if masterID == workerID {
		t.Fatalf("two WorkerSups on different nodes produced the same id %q", masterID)
	}
}

func TestWorkerSupNextIDUniqueAcrossWorkflows(t *testing.T) {
	a := NewWorkerSup("workflow-a", "127.0.0.1:10001", 0)
	b := NewWorkerSup("workflow-b", "127.0.0.1:10001", 0)

	if a.nextID() == b.nextID() {
		t.Fatal("two WorkerSups for different workflows on the same node produced the same id")
	}
}

func TestNodeWorkerSupChildReusesSameSupervisor(t *testing.T) {
	n := NewNodeWorkerSup("wf-ref")
	c1 := n.Child(0, "127.0.0.1:10001")
	c2 := n.Child(0, "127.0.0.1:10001")
	if c1 != c2 {
		t.Error("Child() returned a different WorkerSup for the same index")
	}
}

func TestWorkerSupSpawnAndCollapse(t *testing.T) {
	s := NewWorkerSup("wf-ref", "127.0.0.1:10001", 0)
	ctx := &types.Context{}
	ref := s.Spawn("", nopOp{}, nopStrategy{}, "tag", ctx)
	if ref.ID == "" {
		t.Fatal("Spawn() returned an empty id")
	}

	if _, ok := s.Ref(ref.ID); !ok {
		t.Error("Ref() cannot find the just-spawned worker")
	}

	s.Collapse()
	select {
	case <-ref.Done():
	case <-time.After(2 * time.Second):
		t.Error("worker still running 2s after Collapse()")
	}
}

func TestRegistryLenTracksLiveWorkflows(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d on a fresh registry, want 0", r.Len())
	}

	r.Ensure("wf-1")
	r.Ensure("wf-2")
	if r.Len() != 2 {
		t.Fatalf("Len() = %d after two Ensure calls, want 2", r.Len())
	}

	r.CollapseWorkflow("wf-1")
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after CollapseWorkflow, want 1", r.Len())
	}
}
