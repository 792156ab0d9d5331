package framework

import (
	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/store"
)

// Cluster is a master plus its connected workers, all running in-process.
type Cluster struct {
	t      TestingT
	Master *Node
	Workers []*Node
}

// NewCluster starts a master and numWorkers workers and connects every
// worker to the master, waiting for each join to complete before
// returning.
func NewCluster(t TestingT, numWorkers int, workerTags ...[]string) *Cluster {
	t.Helper()
	c := &Cluster{t: t, Master: NewNode(t, cluster.ModeMaster, nil)}
	for i := 0; i < numWorkers; i++ {
		var tags []string
		if i < len(workerTags) {
			tags = workerTags[i]
		}
		c.AddWorker(tags)
	}
	return c
}

// AddWorker starts one more worker and connects it to the master, used
// both by NewCluster and by late-join scenarios that add a worker after a
// workflow is already deployed.
func (c *Cluster) AddWorker(tags []string) *Node {
	c.t.Helper()
	n := NewNode(c.t, cluster.ModeWorker, tags)
	if err := n.RT.Connect(c.Master.Addr, cluster.ModeMaster); err != nil {
		c.t.Fatalf("framework: worker %s connect to master: %v", n.Addr, err)
	}
	c.Workers = append(c.Workers, n)
	return n
}

// AllNodes returns the master followed by every worker.
func (c *Cluster) AllNodes() []*Node {
	return append([]*Node{c.Master}, c.Workers...)
}

// RemoteGet runs a store.get RPC from requester against target, exercising
// the same cross-node path a real introspection client would use.
func RemoteGet(requester, target *Node, tag, ref string) ([]any, bool) {
	res, err := requester.RT.On(target.Addr, "store.get", store.GetRequest{Tag: tag, Ref: ref})
	if err != nil {
		return nil, false
	}
	reply, ok := res.(store.GetReply)
	if !ok {
		return nil, false
	}
	return reply.Items, reply.Found
}

// NodeSupExists reports whether target has spawned a NodeWorkerSup for
// ref, the in-process equivalent of checking "NodeWorkerSup for ref exists
// on n" from a remote node's point of view: there is no RPC for this, so
// it is only meaningful against a *Node this test binary holds directly.
func NodeSupExists(target *Node, ref string) bool {
	_, ok := target.Reg.Get(ref)
	return ok
}
