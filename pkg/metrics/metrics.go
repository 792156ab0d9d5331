package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fluxion_cluster_nodes_total",
			Help: "Total number of nodes by role and status",
		},
		[]string{"role", "status"},
	)

	WorkflowsDeployed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluxion_workflows_deployed",
			Help: "Number of currently deployed workflows",
		},
	)

	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fluxion_workers_total",
			Help: "Number of live workers by node index and tag",
		},
		[]string{"node_index", "tag"},
	)

	WorkerRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxion_worker_restarts_total",
			Help: "Number of worker restarts by node index",
		},
		[]string{"node_index"},
	)

	NodeSupervisorCollapses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxion_node_supervisor_collapses_total",
			Help: "Number of NodeWorkerSup collapses by node index",
		},
		[]string{"node_index"},
	)

	MessagesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxion_messages_delivered_total",
			Help: "Number of values routed by the emit/deliver router",
		},
		[]string{"out_port"},
	)

	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxion_messages_dropped_total",
			Help: "Number of values emitted on a port with no outgoing link",
		},
		[]string{"out_port"},
	)

	DeployDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fluxion_deploy_duration_seconds",
			Help:    "Time to deploy a workflow, end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluxion_raft_is_leader",
			Help: "Whether this node's deploy-log raft group believes itself leader",
		},
	)
)

// Register adds every collector in this package to the default registry.
// Safe to call once at process start.
func Register() {
	prometheus.MustRegister(
		NodesTotal,
		WorkflowsDeployed,
		WorkersTotal,
		WorkerRestarts,
		NodeSupervisorCollapses,
		MessagesDelivered,
		MessagesDropped,
		DeployDuration,
		RaftLeader,
	)
}

// Handler returns the HTTP handler serving the registry in Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
