// Package types defines the data model and contracts shared by every
// component of the runtime: the Operation/Strategy/Context interfaces
// operations and strategies implement, the Workflow graph as authored, the
// FlatWorkflow the Deployer produces from it, and the DeploymentRecord
// shape describing per-workflow state.
//
// The only runtime package this one imports is pkg/store, for
// Context.Store; nothing here depends on cluster membership or transport.
package types
