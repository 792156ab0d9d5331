// Package worker implements the actor (C3): a goroutine with an unbounded
// mailbox holding operation/strategy/context and mutable user state that
// only its own goroutine ever touches.
package worker
