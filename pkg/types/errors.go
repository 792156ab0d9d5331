package types

import "errors"

// Contract violations. These are programmer errors in operation/strategy
// implementations, not data errors; they are surfaced synchronously rather
// than logged and swallowed.
var (
	// ErrEmitDuringDeploy is returned when a strategy attempts to emit a
	// value from inside its deploy hook, where emission is forbidden.
	ErrEmitDuringDeploy = errors.New("types: emit is forbidden during deploy")

	// ErrWriteWithoutPermission is returned when a callback returns a state
	// patch but its CallbackInfo declares WritesState false.
	ErrWriteWithoutPermission = errors.New("types: callback wrote state without write permission")

	// ErrUnknownCallback is returned by Operation.Call for an unregistered
	// callback name.
	ErrUnknownCallback = errors.New("types: unknown callback")

	// ErrMissingStrategy is returned at deploy time when a node's operation
	// has no default strategy and its NodeSpec.Strategy is unset.
	ErrMissingStrategy = errors.New("types: node has no strategy")
)

// StrategyError wraps a contract violation with the Context active when it
// was detected, so callers can report which workflow/node/tag was at fault.
type StrategyError struct {
	Err error
	Ctx *Context
}

func (e *StrategyError) Error() string {
	if e.Ctx == nil {
		return e.Err.Error()
	}
	return e.Ctx.Runtime.String() + ": " + e.Err.Error()
}

func (e *StrategyError) Unwrap() error { return e.Err }

// NewStrategyError builds a StrategyError for the given context and cause.
func NewStrategyError(ctx *Context, err error) *StrategyError {
	return &StrategyError{Err: err, Ctx: ctx}
}
