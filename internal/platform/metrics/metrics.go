package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TokensIssued      prometheus.Counter
	TokensRevoked     prometheus.Counter
	DocumentsUploaded prometheus.Counter
	ConsentDecisions  *prometheus.CounterVec
	ApprovalsBlocked  prometheus.Counter
	ResolveDuration   prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycvault_tokens_issued_total",
			Help: "Total number of KYC tokens issued",
		}),
		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycvault_tokens_revoked_total",
			Help: "Total number of KYC tokens revoked",
		}),
		DocumentsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycvault_documents_uploaded_total",
			Help: "Total number of evidence documents recorded",
		}),
		ConsentDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycvault_consent_decisions_total",
			Help: "Consent lifecycle transitions by outcome",
		}, []string{"outcome"}),
		ApprovalsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycvault_consent_approvals_blocked_total",
			Help: "Consent approvals refused because evidence was incomplete",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycvault_fulfillment_resolve_seconds",
			Help:    "Latency of consent fulfillment resolution",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveResolve records one fulfillment resolution duration.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(d.Seconds())
}

// IncConsentDecision counts a consent transition by outcome
// (approved, rejected, revoked, expired).
func (m *Metrics) IncConsentDecision(outcome string) {
	if m == nil {
		return
	}
	m.ConsentDecisions.WithLabelValues(outcome).Inc()
}
