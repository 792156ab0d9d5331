package framework

import "time"

// Eventually polls condition every interval until it returns true or
// timeout elapses, failing t if it never does. Adapted from the teacher's
// Waiter/Eventually pair, collapsed to a single free function since the
// harness has no per-suite configuration to carry.
func Eventually(t TestingT, timeout, interval time.Duration, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for: %s (timeout: %v)", description, timeout)
		}
		time.Sleep(interval)
	}
}
