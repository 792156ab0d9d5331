// Package strategy supplies the built-in strategies named in §4.8, each
// grounded on a distinct worker-population shape: ImmutableLocal (one
// worker per node, created at deploy), KeyedState (a worker per key,
// lazily created), PassiveSource (nothing spawned at deploy; driven by
// external RPC), StreamSource (one worker iterating a fixed enumerable)
// and ActiveSource (N workers polling an external source on a timer).
package strategy
