package client

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/transport"
)

// Metrics holds the Prometheus collectors for one or more clients. A nil
// *Metrics records nothing.
type Metrics struct {
	connects       *prometheus.CounterVec
	reconnects     prometheus.Counter
	framesSent     *prometheus.CounterVec
	bytesSent      prometheus.Counter
	framesReceived *prometheus.CounterVec
	failures       *prometheus.CounterVec
}

// NewMetrics registers the client collectors with registry. A nil registry
// means prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "connects_total",
			Help:      "Connection attempts by result",
		}, []string{"result"}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Reconnects triggered by sending on a broken channel",
		}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "frames_sent_total",
			Help:      "Frames written by code",
		}, []string{"code"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "payload_bytes_sent_total",
			Help:      "Payload bytes written",
		}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Frames read by code",
		}, []string{"code"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesp",
			Subsystem: "client",
			Name:      "channel_failures_total",
			Help:      "Channel failures by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connects.WithLabelValues("ok").Inc()
}

func (m *Metrics) connectFailed() {
	if m == nil {
		return
	}
	m.connects.WithLabelValues("error").Inc()
}

func (m *Metrics) reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) sent(req protocol.Request) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(req.Code().String()).Inc()
	m.bytesSent.Add(float64(len(req.Payload())))
}

func (m *Metrics) received(resp protocol.Response) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(resp.Code().String()).Inc()
}

func (m *Metrics) failed(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(failureKind(err)).Inc()
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, transport.ErrBroken):
		return "broken"
	case errors.Is(err, protocol.ErrUnknownCode):
		return "unknown_code"
	case errors.Is(err, protocol.ErrFraming):
		return "framing"
	default:
		return "transport"
	}
}
