package types

// Destination is one endpoint of a link: the downstream node (addressed by
// name, before flattening assigns indices) and the in-port it targets.
type Destination struct {
	Node    string
	InPort  string
}

// NodeSpec is one node of an unflattened Workflow, as the (out-of-scope) DSL
// would hand it to the core. Name is unique within the enclosing workflow
// (or sub-workflow) and is used to resolve link destinations before
// flattening rewrites them into dense indices.
type NodeSpec struct {
	Name      string
	Operation Operation
	Strategy  Strategy // nil means "use Operation.DefaultStrategy()"
	Args      any

	// Links maps each out-port name to the set of destinations it feeds.
	Links map[string][]Destination

	// SubWorkflow is non-nil when this NodeSpec is actually a nested
	// workflow; Operation/Strategy/Args are ignored in that case. Flatten
	// inlines it, prefixing its node names with Name + "/".
	SubWorkflow *Workflow
}

// Workflow is the DAG of operation nodes as authored, before flattening.
type Workflow struct {
	Name  string
	Nodes []*NodeSpec
}
