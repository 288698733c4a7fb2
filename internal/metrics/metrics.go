package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotod_mqtt_messages_received_total",
			Help: "Inbound MQTT messages by topic kind",
		},
		[]string{"kind"},
	)
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotod_messages_dropped_total",
			Help: "Inbound messages dropped before or during processing",
		},
		[]string{"reason"},
	)
	StatusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotod_status_published_total",
			Help: "STATUS messages sent to field modules by status value",
		},
		[]string{"status"},
	)
	StatusSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_status_suppressed_total",
			Help: "STATUS messages withheld because the status did not change",
		},
	)
	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_publish_failures_total",
			Help: "Outbound MQTT publishes that failed",
		},
	)
	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_sessions_opened_total",
			Help: "Maintenance sessions opened",
		},
	)
	SessionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_sessions_closed_total",
			Help: "Maintenance sessions closed",
		},
	)
	ViolationsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_violations_detected_total",
			Help: "CARD holders observed without their LOTO tag",
		},
	)
	AlertsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotod_alerts_recorded_total",
			Help: "Alert records persisted",
		},
	)
	LaneDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lotod_lane_queue_depth",
			Help: "Messages waiting in each processing lane",
		},
		[]string{"lane"},
	)
	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lotod_mqtt_up",
			Help: "Connection with MQTT broker",
		},
	)
)
