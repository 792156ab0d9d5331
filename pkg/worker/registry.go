package worker

import (
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cuemby/fluxion/pkg/cluster"
)

func init() {
	gob.Register(SendRequest{})
}

// registry resolves a worker id to its in-process Worker, so an inbound
// "worker.send" RPC (a remote sender delivering to a worker hosted here)
// can reach it without the sender holding a pointer.
var (
	registryMu sync.RWMutex
	registry   = map[string]*Worker{}
)

func register(w *Worker) {
	registryMu.Lock()
	registry[w.ID] = w
	registryMu.Unlock()
}

func unregister(id string) {
	registryMu.Lock()
	delete(registry, id)
	registryMu.Unlock()
}

func lookup(id string) (*Worker, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	w, ok := registry[id]
	return w, ok
}

// activeRuntime is used by a remote Ref to notify a worker hosted on
// another node. Set once at boot.
var activeRuntime *cluster.Runtime

// SendRequest is the wire envelope for a remote worker.send call.
type SendRequest struct {
	ID            string
	Value         any
	Invocation    any
	HasInvocation bool
}

// RegisterHandlers wires the worker.send RPC onto rt and records rt as the
// runtime remote Refs notify through.
func RegisterHandlers(rt *cluster.Runtime) {
	activeRuntime = rt
	rt.RegisterHandler("worker.send", func(args any) (any, error) {
		req, ok := args.(SendRequest)
		if !ok {
			return nil, fmt.Errorf("worker: malformed send request")
		}
		w, ok := lookup(req.ID)
		if !ok {
			return nil, fmt.Errorf("worker: unknown worker %q", req.ID)
		}
		w.enqueue(message{kind: kindMsg, value: req.Value, invocation: req.Invocation, hasInvocation: req.HasInvocation})
		return nil, nil
	})
	rt.RegisterHandler("worker.deploy_complete", func(args any) (any, error) {
		req, ok := args.(SendRequest)
		if !ok {
			return nil, fmt.Errorf("worker: malformed deploy_complete request")
		}
		if w, ok := lookup(req.ID); ok {
			w.enqueue(message{kind: kindDeployComplete})
		}
		return nil, nil
	})
	rt.RegisterHandler("worker.stop", func(args any) (any, error) {
		req, ok := args.(SendRequest)
		if !ok {
			return nil, fmt.Errorf("worker: malformed stop request")
		}
		if w, ok := lookup(req.ID); ok {
			w.enqueue(message{kind: kindStop})
		}
		return nil, nil
	})
}
