package types

// CallbackInfo describes the side-effect permissions of a single named
// callback on an Operation, as declared by the operation author.
type CallbackInfo struct {
	ReadsState bool
	WritesState bool
	Emits      bool
}

// CallbackResult is the value an Operation's Call returns: a state patch
// (optional), an emit map (optional, out-port name -> ordered values), and
// an arbitrary result value handed back to whatever invoked the callback
// directly; the built-in strategies ignore it.
type CallbackResult struct {
	State    any
	HasState bool
	Emit     map[string][]any
	Result   any
}

// Operation is a handle to a module-like processing unit: ordered ports, an
// initial state, and a pure callback table. The runtime never inspects an
// Operation beyond this interface.
type Operation interface {
	InPorts() []string
	OutPorts() []string

	// DefaultStrategy returns the strategy to use when a workflow node does
	// not set NodeSpec.Strategy. May return nil.
	DefaultStrategy() Strategy

	// InitialState returns the value (or thunk result) new workers are
	// seeded with.
	InitialState() any

	// CallbackInfo reports the declared permissions for a callback name.
	// ok is false if name is not a registered callback.
	CallbackInfo(name string) (info CallbackInfo, ok bool)

	// Call invokes a named callback. args are positional callback
	// arguments; cfg is the node's deploy-time configuration blob.
	Call(name string, state any, cfg any, args []any) (CallbackResult, error)
}

// InPortIndex returns the ordinal position of a named in-port, or -1.
func InPortIndex(op Operation, name string) int {
	for i, p := range op.InPorts() {
		if p == name {
			return i
		}
	}
	return -1
}

// OutPortIndex returns the ordinal position of a named out-port, or -1.
func OutPortIndex(op Operation, name string) int {
	for i, p := range op.OutPorts() {
		if p == name {
			return i
		}
	}
	return -1
}
