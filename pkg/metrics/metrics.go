// Package metrics exposes prometheus collectors for dispatched requests and
// bridge traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "walletlink"

// Reasons a recognised request was not handled
const (
	ReasonUnknownCommand = "unknown_command"
	ReasonSchemeMismatch = "scheme_mismatch"
	ReasonInvalid        = "invalid"
	ReasonNoSigner       = "no_signer"
)

type Metrics struct {
	dispatched     *prometheus.CounterVec
	ignored        *prometheus.CounterVec
	signDuration   *prometheus.HistogramVec
	bridgeRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_total",
			Help:      "Requests handed to the signer, by command and outcome.",
		}, []string{"kind", "outcome"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_total",
			Help:      "Inbound URLs that were not handled, by reason.",
		}, []string{"reason"}),
		signDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sign_duration_seconds",
			Help:      "Time spent in the signing backend.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		bridgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_requests_total",
			Help:      "HTTP requests served by the bridge, by path and status code.",
		}, []string{"path", "code"}),
	}

	for _, c := range []prometheus.Collector{m.dispatched, m.ignored, m.signDuration, m.bridgeRequests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveDispatch(kind types.CommandKind, outcome string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) ObserveIgnored(reason string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSign(kind types.CommandKind, d time.Duration) {
	if m == nil {
		return
	}
	m.signDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

func (m *Metrics) ObserveBridgeRequest(path string, code int) {
	if m == nil {
		return
	}
	m.bridgeRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}
