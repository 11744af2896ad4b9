// Package metrics exposes the bot's prometheus collectors.
package metrics

import (
	"time"

	"weatherbot/dialog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type Metrics struct {
	Registry *prometheus.Registry

	MessagesReceived  prometheus.Counter
	FlowsStarted      *prometheus.CounterVec
	FlowsCompleted    *prometheus.CounterVec
	FlowErrors        *prometheus.CounterVec
	DeliveryFailures  *prometheus.CounterVec
	TransitionSeconds prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_messages_received_total",
			Help: "Logical messages handed to the conversation engine",
		}),
		FlowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_flows_started_total",
			Help: "Flows started, by flow",
		}, []string{"flow"}),
		FlowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_flows_completed_total",
			Help: "Flows that returned normally, by flow",
		}, []string{"flow"}),
		FlowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_flow_errors_total",
			Help: "Flow steps that failed on a collaborator, by flow",
		}, []string{"flow"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_delivery_failures_total",
			Help: "Presentation actions Telegram refused, by action",
		}, []string{"action"}),
		TransitionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherbot_transition_seconds",
			Help:    "Time from receiving a message to delivering its last action",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MessagesReceived,
		m.FlowsStarted,
		m.FlowsCompleted,
		m.FlowErrors,
		m.DeliveryFailures,
		m.TransitionSeconds,
	)
	return m
}

// Hooks counts flow lifecycle events and logs them at debug level.
func (m *Metrics) Hooks(logger *zap.Logger) dialog.Hooks {
	return dialog.Hooks{
		OnFlowStart: func(user dialog.User, flow string) {
			m.FlowsStarted.WithLabelValues(flow).Inc()
		},
		OnFlowComplete: func(user dialog.User, flow string) {
			logger.Debug("flow completed",
				zap.Int64("chat_id", user.ID),
				zap.String("flow", flow),
			)
			m.FlowsCompleted.WithLabelValues(flow).Inc()
		},
		OnFlowError: func(user dialog.User, flow string, err error) {
			m.FlowErrors.WithLabelValues(flow).Inc()
		},
	}
}

func (m *Metrics) MessageReceived() {
	m.MessagesReceived.Inc()
}

func (m *Metrics) DeliveryFailed(action string) {
	m.DeliveryFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) TransitionDone(started time.Time) {
	m.TransitionSeconds.Observe(time.Since(started).Seconds())
}
