// Package events provides the in-memory broker behind cluster.Runtime's
// membership bus (§4.1): worker_up/worker_down notifications fanned out
// to every subscriber over a buffered channel, non-blocking on publish.
//
// Subscribe returns a channel that receives every event from the point
// of subscription onward; there is no replay and no delivery guarantee
// for a slow subscriber (its buffer fills and events are dropped, never
// blocking the publisher).
package events
