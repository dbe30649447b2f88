package servershm

import "github.com/prometheus/client_golang/prometheus"

var (
	serverConstructs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scshm_server_constructs_total",
		Help: "Control bus blocks constructed inside a shared segment.",
	})
	serverDestroys = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scshm_server_destroys_total",
		Help: "Control bus blocks destroyed.",
	})
	clientAttaches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scshm_client_attaches_total",
		Help: "Successful client attachments to a bus segment.",
	})
	attachFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scshm_client_attach_failures_total",
		Help: "Failed client attachments by failure kind.",
	}, []string{"reason"})
	busUpdatesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scshm_bus_updates_queued_total",
		Help: "Control bus updates enqueued via SetControlBus.",
	})
	busUpdatesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scshm_bus_updates_applied_total",
		Help: "Control bus updates applied by DrainPendingUpdates.",
	})
)

func init() {
	prometheus.MustRegister(serverConstructs, serverDestroys,
		clientAttaches, attachFailures, busUpdatesQueued, busUpdatesApplied)
}

const (
	failureSegmentNotFound = "segment_not_found"
	failureBlockNotFound   = "block_not_found"
	failureBlockAmbiguous  = "block_ambiguous"
	failureBadSegment      = "bad_segment"
)
