// Package deploy implements the Deployer (C5): flattening a possibly
// nested workflow into a dense DAG of nodes, spawning the supervision
// tree for it on every runtime, running each node's strategy.deploy hook,
// publishing the deployment record, and releasing every worker held in
// initialising once the whole sequence succeeds. Any failure unwinds a
// compensation stack built as the sequence progresses.
package deploy
