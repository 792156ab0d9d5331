package cluster

import (
	"testing"
	"time"
)

func TestRuntimeAddRemoveMembers(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19001", nil, nil)
	defer master.transport.Close()

	master.Add("127.0.0.1:19002", []string{"gpu"})
	master.Add("127.0.0.1:19003", nil)

	if !master.IsMember("127.0.0.1:19002") {
		t.Error("IsMember() false for just-added member")
	}
	if len(master.Members()) != 2 {
		t.Errorf("Members() len = %d, want 2", len(master.Members()))
	}
	tagged := master.TaggedMembers("gpu")
	if len(tagged) != 1 || tagged[0] != "127.0.0.1:19002" {
		t.Errorf("TaggedMembers(gpu) = %v, want [127.0.0.1:19002]", tagged)
	}

	master.Remove("127.0.0.1:19002", "test teardown")
	if master.IsMember("127.0.0.1:19002") {
		t.Error("IsMember() true after Remove()")
	}
	if len(master.Members()) != 1 {
		t.Errorf("Members() len after Remove = %d, want 1", len(master.Members()))
	}
}

func TestRuntimeAddPublishesWorkerUp(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19011", nil, nil)
	defer master.transport.Close()

	sub := master.Bus().Subscribe()
	defer master.Bus().Unsubscribe(sub)

	master.Add("127.0.0.1:19012", []string{"gpu"})

	select {
	case ev := <-sub:
		if ev.Type != "worker.up" || ev.Node != "127.0.0.1:19012" {
			t.Errorf("event = %+v, want worker.up for 127.0.0.1:19012", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Add() never published worker.up")
	}
}

func TestRuntimeRemoveOfUnknownIsSilent(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19021", nil, nil)
	defer master.transport.Close()

	sub := master.Bus().Subscribe()
	defer master.Bus().Unsubscribe(sub)

	master.Remove("127.0.0.1:19099", "never joined")

	select {
	case ev := <-sub:
		t.Fatalf("Remove() of a non-member published an event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRuntimeOnDispatchesRegisteredHandler(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19031", nil, nil)
	defer master.transport.Close()
	worker := New(ModeWorker, "127.0.0.1:19032", []string{"gpu"}, nil)
	defer worker.transport.Close()

	worker.RegisterHandler("echo", func(args any) (any, error) {
		s, _ := args.(string)
		return "echo:" + s, nil
	})
	master.Add(worker.SelfAddr, worker.Tags)

	val, err := master.On(worker.SelfAddr, "echo", "hi")
	if err != nil {
		t.Fatalf("On() error = %v", err)
	}
	if val != "echo:hi" {
		t.Errorf("On() = %v, want echo:hi", val)
	}
}

func TestRuntimeOnUnknownNodeErrors(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19041", nil, nil)
	defer master.transport.Close()

	if _, err := master.On("127.0.0.1:19999", "beacon", nil); err == nil {
		t.Error("On() to a node never Add()-ed, want error")
	}
}

func TestRuntimeOnUnknownMethodErrors(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19051", nil, nil)
	defer master.transport.Close()
	worker := New(ModeWorker, "127.0.0.1:19052", nil, nil)
	defer worker.transport.Close()

	master.Add(worker.SelfAddr, nil)
	if _, err := master.On(worker.SelfAddr, "no-such-method", nil); err == nil {
		t.Error("On() with an unregistered method, want error")
	}
}

func TestRuntimeBeaconBuiltin(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19061", nil, nil)
	defer master.transport.Close()
	worker := New(ModeWorker, "127.0.0.1:19062", nil, nil)
	defer worker.transport.Close()

	master.Add(worker.SelfAddr, nil)
	val, err := master.On(worker.SelfAddr, "beacon", nil)
	if err != nil {
		t.Fatalf("On(beacon) error = %v", err)
	}
	info, ok := val.(BeaconInfo)
	if !ok {
		t.Fatalf("On(beacon) value = %T, want BeaconInfo", val)
	}
	if info.Mode != ModeWorker || info.Version != Version {
		t.Errorf("Beacon() = %+v, want Mode=worker Version=%s", info, Version)
	}
}

func TestRuntimeOnManyFansOutToEveryAddr(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19071", nil, nil)
	defer master.transport.Close()

	var workers []*Runtime
	var addrs []string
	for i := 0; i < 3; i++ {
		addr := []string{"127.0.0.1:19072", "127.0.0.1:19073", "127.0.0.1:19074"}[i]
		w := New(ModeWorker, addr, nil, nil)
		defer w.transport.Close()
		w.RegisterHandler("ping", func(args any) (any, error) { return "pong", nil })
		master.Add(addr, nil)
		workers = append(workers, w)
		addrs = append(addrs, addr)
	}
	_ = workers

	results := master.OnAllWorkers("ping", nil)
	if len(results) != 3 {
		t.Fatalf("OnAllWorkers() len = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != nil || r.Value != "pong" {
			t.Errorf("result for %s = %v, %v, want pong, nil", r.Addr, r.Value, r.Err)
		}
	}
}

func TestRuntimeOnTaggedWorkersFiltersByTag(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19081", nil, nil)
	defer master.transport.Close()

	gpu := New(ModeWorker, "127.0.0.1:19082", []string{"gpu"}, nil)
	defer gpu.transport.Close()
	gpu.RegisterHandler("ping", func(args any) (any, error) { return "pong", nil })
	plain := New(ModeWorker, "127.0.0.1:19083", nil, nil)
	defer plain.transport.Close()
	plain.RegisterHandler("ping", func(args any) (any, error) { return "pong", nil })

	master.Add(gpu.SelfAddr, gpu.Tags)
	master.Add(plain.SelfAddr, plain.Tags)

	results := master.OnTaggedWorkers("gpu", "ping", nil)
	if len(results) != 1 || results[0].Addr != gpu.SelfAddr {
		t.Errorf("OnTaggedWorkers(gpu) = %+v, want exactly gpu's addr", results)
	}
}

func TestRuntimeOnNPicksRoundRobin(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19091", nil, nil)
	defer master.transport.Close()

	w := New(ModeWorker, "127.0.0.1:19092", nil, nil)
	defer w.transport.Close()
	w.RegisterHandler("ping", func(args any) (any, error) { return "pong", nil })
	master.Add(w.SelfAddr, nil)

	results := master.OnN(3, "ping", nil)
	if len(results) != 3 {
		t.Fatalf("OnN(3) len = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Addr != w.SelfAddr || r.Err != nil {
			t.Errorf("OnN result = %+v, want addr=%s err=nil", r, w.SelfAddr)
		}
	}
}

func TestRuntimeOnNEmptyMembershipReturnsNil(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19101", nil, nil)
	defer master.transport.Close()

	if got := master.OnN(3, "ping", nil); got != nil {
		t.Errorf("OnN() with no members = %v, want nil", got)
	}
}

func TestRuntimeNotifyIsFireAndForget(t *testing.T) {
	master := New(ModeMaster, "127.0.0.1:19111", nil, nil)
	defer master.transport.Close()
	w := New(ModeWorker, "127.0.0.1:19112", nil, nil)
	defer w.transport.Close()

	received := make(chan struct{}, 1)
	w.RegisterHandler("fire", func(args any) (any, error) {
		received <- struct{}{}
		return nil, nil
	})
	master.Add(w.SelfAddr, nil)

	master.Notify(w.SelfAddr, "fire", nil)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify() never reached the handler")
	}
}
