// Package workflow implements the workflow manager (C7): one Manager
// per deployed workflow reference, responsible for keeping the
// deployment record available to late-joining nodes and for durably
// recording the deploy/undeploy history of the master itself.
//
// Replay is event-driven off cluster.Runtime's bus rather than polled,
// unlike the ticker-driven reconciliation it is adapted from: a
// worker_up triggers a direct replay to the joining node, and
// worker_down needs no reaction since §4.1 rules out self-healing.
package workflow
