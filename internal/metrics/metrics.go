// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames handed to a dissector, by protocol name.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_frames_total",
			Help: "Total number of frames dissected",
		},
		[]string{"dissector"},
	)

	// FrameErrorsTotal counts frames whose dissection returned an error.
	FrameErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_frame_errors_total",
			Help: "Total number of frames whose dissection failed",
		},
		[]string{"dissector"},
	)

	// RTCPSegmentsTotal counts RTCP compound segments by packet type name.
	RTCPSegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_rtcp_segments_total",
			Help: "Total number of RTCP segments decoded",
		},
		[]string{"type"},
	)

	// RTPPacketsTotal counts decoded RTP packets by payload type name.
	RTPPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_rtp_packets_total",
			Help: "Total number of RTP packets decoded",
		},
		[]string{"payload_type"},
	)

	// ExpertsTotal counts expert diagnostics attached to trees, by severity.
	ExpertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_expert_diagnostics_total",
			Help: "Total number of expert diagnostics raised",
		},
		[]string{"severity"},
	)

	// RoundtripSeconds tracks RTCP roundtrip estimates computed from
	// SR/RR correlation.
	RoundtripSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tyto_rtcp_roundtrip_seconds",
			Help:    "Estimated RTCP roundtrip delay in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	// SIPMessagesTotal counts parsed SIP messages by kind (request/response).
	SIPMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_sip_messages_total",
			Help: "Total number of SIP messages parsed",
		},
		[]string{"kind"},
	)

	// TPNCPRecordsTotal counts decoded TPNCP records by kind (event/command).
	TPNCPRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyto_tpncp_records_total",
			Help: "Total number of TPNCP records decoded",
		},
		[]string{"kind"},
	)

	// ConversationsActive tracks the number of flows in the conversation store.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tyto_conversations_active",
			Help: "Current number of tracked conversations",
		},
	)
)
