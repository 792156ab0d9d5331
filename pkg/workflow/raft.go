package workflow

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// raftNode wraps the single-node raft group a master uses to durably
// record deploy/undeploy commands, following the teacher's manager
// bootstrap sequence (TCP transport, file snapshot store, boltdb log
// and stable stores) with faster timeouts dropped — §4.7's durability
// goal is "survive a restart", not "tolerate master failover" (see
// DESIGN.md's Open Question decision on this).
type raftNode struct {
	raft *raft.Raft
	fsm  *fsm
}

func newRaftNode(nodeID, bindAddr, dataDir string) (*raftNode, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("workflow: create data dir: %w", err)
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolve raft bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("workflow: raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("workflow: raft snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("workflow: raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("workflow: raft stable store: %w", err)
	}

	f := newFSM()
	r, err := raft.NewRaft(config, f, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("workflow: new raft: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("workflow: bootstrap raft: %w", err)
	}

	return &raftNode{raft: r, fsm: f}, nil
}

// apply proposes cmd and blocks until it is committed (or times out).
func (n *raftNode) apply(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("workflow: marshal command: %w", err)
	}
	future := n.raft.Apply(data, 5*time.Second)
	return future.Error()
}
