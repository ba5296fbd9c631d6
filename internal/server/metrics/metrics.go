// Package metrics exposes Prometheus counters for workflow commands,
// invitation tokens and session tokens.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reviewflow"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	invitations     *prometheus.CounterVec
	tokens          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Workflow commands by name and outcome.",
		}, []string{"command", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing workflow commands.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied article status transitions.",
		}, []string{"from", "to"}),
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitation_tokens_total",
			Help:      "Invitation token operations by action and outcome.",
		}, []string{"action", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_tokens_total",
			Help:      "Access and refresh token operations by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.commands, m.commandDuration, m.transitions, m.invitations, m.tokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Outcome classifies err into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, common.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, common.ErrorUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrTokenNotFound), errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrTokenAlreadyUsed):
		return "already_used"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, common.ErrorValidation):
		return "validation"
	default:
		return "error"
	}
}

// ObserveCommand records one workflow command.
func (m *Metrics) ObserveCommand(command string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, Outcome(err)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveTransition records an applied status change.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveInvitation records an invitation token operation.
func (m *Metrics) ObserveInvitation(action string, err error) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(action, Outcome(err)).Inc()
}

// ObserveToken records a session token operation.
func (m *Metrics) ObserveToken(action string, err error) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(action, Outcome(err)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
