package worker

import (
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/fluxion/pkg/types"
)

// fakeOp is a minimal types.Operation: only InitialState matters to Worker.
type fakeOp struct{ initial any }

func (fakeOp) InPorts() []string               { return nil }
func (fakeOp) OutPorts() []string              { return nil }
func (fakeOp) DefaultStrategy() types.Strategy { return nil }
func (o fakeOp) InitialState() any             { return o.initial }
func (fakeOp) CallbackInfo(string) (types.CallbackInfo, bool) {
	return types.CallbackInfo{}, false
}
func (fakeOp) Call(string, any, any, []any) (types.CallbackResult, error) {
	return types.CallbackResult{}, types.ErrUnknownCallback
}

// fakeStrategy increments an int state by the delivered value, crashing
// whenever the value equals crashOn.
type fakeStrategy struct{ crashOn int }

func (fakeStrategy) Deploy(*types.Context) (any, error) { return nil, nil }
func (fakeStrategy) Deliver(*types.Context, any, int) error { return nil }
func (s fakeStrategy) Process(_ *types.Context, msg types.WorkerMessage, state any, _ string) (types.PartialResult, error) {
	n, _ := msg.Value.(int)
	if s.crashOn != 0 && n == s.crashOn {
		return types.PartialResult{}, fmt.Errorf("worker_test: forced crash at %d", n)
	}
	cur, _ := state.(int)
	return types.PartialResult{State: cur + n, HasState: true}, nil
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not reach done in time")
	}
}

func TestSpawnStartsInitialising(t *testing.T) {
	ctx := &types.Context{}
	ref := Spawn("w1", fakeOp{initial: 0}, fakeStrategy{}, "tag", ctx, nil)

	if ref.State() != StateInitialising {
		t.Errorf("State() = %v, want StateInitialising", ref.State())
	}
	ref.Stop()
	waitDone(t, ref.Done())
}

func TestDeployCompleteMovesToReady(t *testing.T) {
	ctx := &types.Context{}
	ref := Spawn("w2", fakeOp{initial: 0}, fakeStrategy{}, "tag", ctx, nil)
	defer func() { ref.Stop(); waitDone(t, ref.Done()) }()

	ref.DeployComplete()
	// DeployComplete is processed asynchronously on the worker's goroutine.
	deadline := time.Now().Add(time.Second)
	for ref.State() != StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("State() never reached StateReady, stuck at %v", ref.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSendAccumulatesState(t *testing.T) {
	ctx := &types.Context{}
	ref := Spawn("w3", fakeOp{initial: 0}, fakeStrategy{}, "tag", ctx, nil)
	defer func() { ref.Stop(); waitDone(t, ref.Done()) }()

	ref.Send(2, nil, false)
	ref.Send(3, nil, false)
	ref.Send(5, nil, false)

	// No exported state accessor: Stop and observe Done closes cleanly,
	// which only happens if handle() never treated a send as a crash.
	ref.Stop()
	waitDone(t, ref.Done())
	if ref.State() != StateStopped {
		t.Errorf("State() after Stop = %v, want StateStopped", ref.State())
	}
}

func TestCrashInvokesOnCrashAndStops(t *testing.T) {
	var gotErr error
	crashed := make(chan struct{})
	onCrash := func(w *Worker, err error) {
		gotErr = err
		close(crashed)
	}

	ctx := &types.Context{}
	ref := Spawn("w4", fakeOp{initial: 0}, fakeStrategy{crashOn: 7}, "tag", ctx, onCrash)

	ref.Send(7, nil, false)

	select {
	case <-crashed:
	case <-time.After(2 * time.Second):
		t.Fatal("onCrash was never invoked")
	}
	if gotErr == nil {
		t.Error("onCrash received a nil error")
	}
	waitDone(t, ref.Done())
	if ref.State() != StateStopped {
		t.Errorf("State() after crash = %v, want StateStopped", ref.State())
	}
}

func TestStopIsIdempotentAfterCrash(t *testing.T) {
	onCrash := func(*Worker, error) {}
	ctx := &types.Context{}
	ref := Spawn("w5", fakeOp{initial: 0}, fakeStrategy{crashOn: 1}, "tag", ctx, onCrash)

	ref.Send(1, nil, false)
	waitDone(t, ref.Done())

	// Sending or stopping a dead worker must not panic or block.
	ref.Send(9, nil, false)
	ref.Stop()
}
