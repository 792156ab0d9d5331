package types

// Link is a single resolved destination of an out-port: a downstream node
// index and the ordinal position of the in-port it targets. Built once at
// flatten time so the emit router never does name lookups on the hot path.
type Link struct {
	NodeIndex int
	InPort    int
}

// FlatNode is one node of a flattened Workflow: a dense index, its
// operation/strategy/args, and its out-port -> destination-index table.
// Indices are stable for the lifetime of the workflow (§3 invariants).
type FlatNode struct {
	Index     int
	Name      string // slash-joined path, e.g. "outer/inner/leaf"
	Operation Operation
	Strategy  Strategy
	Args      any

	// Links maps out-port name to the ordered list of resolved
	// destinations; built by the Deployer during flatten.
	Links map[string][]Link
}

// FlatWorkflow is the pure DAG produced by flattening (§3): a dense,
// ordered node list with no remaining sub-workflows.
type FlatWorkflow struct {
	Nodes []*FlatNode
}

// NodeByName returns the index of the node with the given path, or -1.
func (w *FlatWorkflow) NodeByName(name string) int {
	for _, n := range w.Nodes {
		if n.Name == name {
			return n.Index
		}
	}
	return -1
}

// ResolvedLink is a (Context, in-port index) pair pre-built by the Deployer
// so the emit router does O(1) lookups at emit time (§4.6).
type ResolvedLink struct {
	Ctx    *Context
	InPort int
}

// DeploymentRecord is the per-workflow state materialised on every node
// (§3): the per-node deployment values and their pre-built link tables.
// Everything here is append-only for the lifetime of a workflow ref.
type DeploymentRecord struct {
	WorkflowRef string
	Deployments []any                     // Deployments[i] for node i
	Links       []map[string][]ResolvedLink // Links[i][port] for node i
}
