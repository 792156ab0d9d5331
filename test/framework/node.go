package framework

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/deploy"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/strategy"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/worker"
	"github.com/cuemby/fluxion/pkg/workflow"
)

// Node is one fully wired fluxion process running in-test, bound to a real
// loopback TCP port so it exercises the genuine yamux transport and join
// handshake rather than a synthetic shortcut.
type Node struct {
	Addr string
	Mode cluster.Mode
	Tags []string

	RT       *cluster.Runtime
	Store    *store.Store
	Reg      *supervisor.Registry
	Deployer *deploy.Deployer
	Manager  *workflow.Manager
}

// Deps returns the strategy dependencies for building workflows against
// this node.
func (n *Node) Deps() strategy.Deps {
	return strategy.Deps{RT: n.RT, Reg: n.Reg, Store: n.Store}
}

// freePort asks the OS for an unused loopback port. There is a race
// between closing this listener and the caller binding the same port, the
// same tradeoff every net/http/httptest-style test harness accepts.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// NewNode builds and starts one node in the given mode, serving real
// traffic on a loopback port.
func NewNode(t TestingT, mode cluster.Mode, tags []string) *Node {
	t.Helper()
	port, err := freePort()
	if err != nil {
		t.Fatalf("framework: allocate port: %v", err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	transport := cluster.NewYamuxTransport(addr)
	rt := cluster.New(mode, addr, tags, transport)
	if err := rt.Serve(); err != nil {
		t.Fatalf("framework: serve %s: %v", addr, err)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), rt)
	if err != nil {
		t.Fatalf("framework: open store for %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = st.Close() })

	reg := supervisor.NewRegistry()
	worker.RegisterHandlers(rt)
	supervisor.RegisterHandlers(rt, reg, st)

	deployer := deploy.New(rt, st, reg)
	mgr := workflow.New(rt, st, reg, deployer)
	t.Cleanup(mgr.Close)

	return &Node{
		Addr:     addr,
		Mode:     mode,
		Tags:     tags,
		RT:       rt,
		Store:    st,
		Reg:      reg,
		Deployer: deployer,
		Manager:  mgr,
	}
}
