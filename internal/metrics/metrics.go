package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "etheraudio_active_sessions",
		Help: "Number of running streaming sessions by kind",
	}, []string{"kind"})
	PlaybackState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etheraudio_playback_state",
		Help: "Current jitter playback state (0 idle, 1 filling, 2 playing, 3 stalled, 4 stopped)",
	})
	PacingIntervalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etheraudio_pacing_interval_seconds",
		Help: "Current inter-packet sleep chosen by the pacing controller",
	})
	PacingDeltaSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etheraudio_pacing_delta_seconds",
		Help: "Latest schedule error of the file sender (positive means ahead of schedule)",
	})
	CaptureActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etheraudio_capture_active",
		Help: "1 while the push-to-talk gate is open",
	})
)

// Counters
var (
	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etheraudio_sessions_started_total",
		Help: "Total sessions started by kind",
	}, []string{"kind"})
	SessionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etheraudio_session_errors_total",
		Help: "Total sessions that ended with a fatal error by kind",
	}, []string{"kind"})
	PacketsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_packets_received_total",
		Help: "Total datagrams accepted by the inbound pump",
	})
	PacketsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_packets_dropped_total",
		Help: "Total datagrams discarded for having the wrong size",
	})
	RingOverwrittenBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_ring_overwritten_bytes_total",
		Help: "Total unread bytes overwritten because the receive buffer was full",
	})
	PacketsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etheraudio_packets_sent_total",
		Help: "Total datagrams sent by destination",
	}, []string{"destination"})
	SendFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etheraudio_send_failures_total",
		Help: "Total datagram send failures by destination",
	}, []string{"destination"})
	PeriodsPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_periods_played_total",
		Help: "Total periods handed to the playback device",
	})
	FillTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_fill_timeouts_total",
		Help: "Total playback stalls caused by the fill deadline elapsing",
	})
	DeviceUnderrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_device_underruns_total",
		Help: "Total transient playback underruns",
	})
	DeviceOverrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_device_overruns_total",
		Help: "Total transient capture overruns",
	})
	PeriodsCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_periods_captured_total",
		Help: "Total periods read from the capture device",
	})
	PeriodsCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_periods_coalesced_total",
		Help: "Total captured periods replaced in the mailbox before being sent",
	})
	PushToTalkTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etheraudio_ptt_changes_total",
		Help: "Total push-to-talk gate changes by source",
	}, []string{"source"})
	RecordedPacketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etheraudio_recorded_packets_total",
		Help: "Total datagrams dumped by the recorder",
	})
)

// Histograms
var (
	SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "etheraudio_send_duration_ms",
		Help:    "Time to fan one buffer out to every destination in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	})
	CaptureToSendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "etheraudio_capture_to_send_ms",
		Help:    "Delay between a period finishing capture and it being sent in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 20, 32, 64, 128, 256},
	})
)
