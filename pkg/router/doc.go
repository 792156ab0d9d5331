// Package router implements the emit/deliver router (C6): given a
// per-node context and an emit map, it looks up the pre-built link table
// in the constant store and calls each destination's strategy.Deliver.
// The router itself holds no state and is safe to call concurrently from
// every worker goroutine in the process.
package router
