package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Command is one entry in the deploy-log raft group: a deploy or an
// undeploy of a workflow ref. Only the ref crosses into the log —
// the actual (deployments, links, topology) triple already lives in
// pkg/store and is replicated there, not through raft.
type Command struct {
	Op  string `json:"op"` // "deploy" | "undeploy"
	Ref string `json:"ref"`
}

// fsm applies committed deploy-log commands to an in-memory set of
// currently-deployed workflow refs, following the teacher's
// Command-envelope-plus-switch Apply shape.
type fsm struct {
	mu   sync.RWMutex
	refs map[string]bool
}

func newFSM() *fsm {
	return &fsm{refs: make(map[string]bool)}
}

// Apply applies one committed raft.Log entry.
func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("workflow: fsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "deploy":
		f.refs[cmd.Ref] = true
	case "undeploy":
		delete(f.refs, cmd.Ref)
	default:
		return fmt.Errorf("workflow: fsm: unknown command %q", cmd.Op)
	}
	return nil
}

// Deployed reports whether ref is currently recorded as deployed.
func (f *fsm) Deployed(ref string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refs[ref]
}

// Refs returns every currently-deployed workflow ref.
func (f *fsm) Refs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.refs))
	for ref := range f.refs {
		out = append(out, ref)
	}
	return out
}

// Snapshot implements raft.FSM.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	refs := make(map[string]bool, len(f.refs))
	for ref := range f.refs {
		refs[ref] = true
	}
	return &fsmSnapshot{refs: refs}, nil
}

// Restore implements raft.FSM.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var refs map[string]bool
	if err := json.NewDecoder(rc).Decode(&refs); err != nil {
		return fmt.Errorf("workflow: fsm: decode snapshot: %w", err)
	}
	f.mu.Lock()
	f.refs = refs
	f.mu.Unlock()
	return nil
}

type fsmSnapshot struct {
	refs map[string]bool
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := json.NewEncoder(sink).Encode(s.refs)
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
