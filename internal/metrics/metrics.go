package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersStarted counts transfers that entered the pipeline.
	TransfersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrouter_transfers_started_total",
		Help: "Number of transfers started",
	})

	// PaymentsSettled counts payments that reached a terminal provider status.
	PaymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrouter_payments_settled_total",
		Help: "Number of payments settled by final status",
	}, []string{"status"})

	// ChainRPCRetries counts retried JSON-RPC reads per network.
	ChainRPCRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrouter_chain_rpc_retries_total",
		Help: "Number of retried blockchain RPC calls",
	}, []string{"network"})

	// MonitorSweeps counts completed transaction monitor sweeps per network.
	MonitorSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrouter_monitor_sweeps_total",
		Help: "Number of completed transaction monitor sweeps",
	}, []string{"network"})
)
