// Package supervisor implements the spawner/supervision tree (C4):
//
//	WorkerSup (dynamic, one per node per workflow)
//	  -- Worker actors
//	NodeWorkerSup (per workflow, one child = one WorkerSup per node index)
//	WorkflowWorkerSup (process-wide, one child per deployed workflow)
//
// Worker restarts are transient; WorkerSup is one_for_one; NodeWorkerSup is
// one_for_one with max_restarts=0, so a persistent node failure collapses
// the whole workflow on that runtime rather than restarting forever.
package supervisor
