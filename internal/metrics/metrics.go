// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceived counts datagrams read off the socket.
	DatagramsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asio_datagrams_received_total",
			Help: "Total number of datagrams received",
		},
		[]string{"family"},
	)

	// DatagramsReplied counts replies that were fully written.
	DatagramsReplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asio_datagrams_replied_total",
			Help: "Total number of datagrams echoed back",
		},
		[]string{"family"},
	)

	// ReplyErrors counts failed or short reply writes.
	ReplyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asio_reply_errors_total",
			Help: "Total number of failed reply writes",
		},
	)

	// AbsentDestInfo counts datagrams served without destination metadata.
	AbsentDestInfo = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asio_absent_destination_info_total",
			Help: "Total number of datagrams served without destination metadata",
		},
	)

	// AncillaryAnomalies counts unknown or malformed ancillary records.
	AncillaryAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asio_ancillary_anomalies_total",
			Help: "Total number of unknown or malformed ancillary records",
		},
	)

	// Truncations counts kernel side payload or control truncations.
	Truncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asio_truncations_total",
			Help: "Total number of truncated datagrams or ancillary blocks",
		},
	)
)
