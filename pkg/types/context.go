package types

import (
	"fmt"

	"github.com/cuemby/fluxion/pkg/store"
)

// Phase distinguishes the one-time deploy call from every later hook
// invocation; the emit router uses it to refuse emits made during deploy.
type Phase int

const (
	// PhaseDeploy marks a Context built for a strategy's Deploy hook.
	PhaseDeploy Phase = iota
	// PhaseRun marks a Context built for Deliver/Process after deployment.
	PhaseRun
)

// RuntimeRef is the opaque (workflow_ref, node_index) pair threaded through
// every Context, plus the phase it was built under.
type RuntimeRef struct {
	WorkflowRef string
	NodeIndex   int
	Phase       Phase
}

func (r RuntimeRef) String() string {
	if r.Phase == PhaseDeploy {
		return fmt.Sprintf("deploy(%s, %d)", r.WorkflowRef, r.NodeIndex)
	}
	return fmt.Sprintf("%s[%d]", r.WorkflowRef, r.NodeIndex)
}

// Context is the immutable bundle threaded through every strategy hook.
// Invocation is the only field that changes per message: the worker
// receive loop rebinds it for each msg() before calling Process.
type Context struct {
	Operation Operation
	Strategy  Strategy
	Args      any

	// Deployment is the value strategy.Deploy returned for this node. It is
	// nil while Runtime.Phase == PhaseDeploy, since deploy is what produces
	// it.
	Deployment any

	// Invocation carries per-value metadata alongside data; absent unless
	// HasInvocation is true.
	Invocation    any
	HasInvocation bool

	Runtime RuntimeRef

	// Store is the constant/node store this node's runtime is wired to,
	// threaded explicitly rather than reached through a package-level
	// global so more than one runtime can share a process (test/framework
	// runs a whole cluster this way).
	Store *store.Store
}

// WithInvocation returns a copy of ctx with Invocation replaced, the way the
// worker receive loop binds a fresh per-message context without mutating
// the one stored on the worker.
func (ctx *Context) WithInvocation(inv any, has bool) *Context {
	cp := *ctx
	cp.Invocation = inv
	cp.HasInvocation = has
	return &cp
}
