package types

// EmitValue pairs a single emitted value with its own invocation metadata,
// used by the emit_invocation variant of PartialResult (§3, §4.3).
type EmitValue struct {
	Port       string
	Value      any
	Invocation any
	HasInvocation bool
}

// PartialResult is what Strategy.Process returns: everything is optional,
// matching the spec's "all fields optional" PartialResult record.
type PartialResult struct {
	State    any
	HasState bool

	Emit    map[string][]any
	HasEmit bool

	EmitInvocation    []EmitValue
	HasEmitInvocation bool
}

// WorkerMessage is the payload of a msg() sent to a worker's mailbox.
type WorkerMessage struct {
	Value      any
	Invocation any
	HasInvocation bool
}

// Strategy is the distributed behaviour paired with an Operation. The three
// hooks are the entire contract between the core runtime and the (out of
// scope) DSL/user strategy code.
type Strategy interface {
	// Deploy runs once at deploy time for the node this Context describes.
	// It may spawn workers through the supervisor package, using ctx's
	// workflow ref and node index, but must not emit.
	Deploy(ctx *Context) (deployment any, err error)

	// Deliver runs when an upstream worker (or the router) has a value
	// destined for this node. It must not block; strategies typically
	// forward the value to an owned worker's mailbox.
	Deliver(ctx *Context, value any, inPortIndex int) error

	// Process runs inside a worker when it receives a message.
	Process(ctx *Context, msg WorkerMessage, state any, tag string) (PartialResult, error)
}
