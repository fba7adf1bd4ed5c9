// services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the referral engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	purchases     *prometheus.CounterVec
	conversions   *prometheus.CounterVec
	credits       prometheus.Counter
	expirations   prometheus.Counter
	registrations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Subsystem: "engine",
			Name:      "purchases_total",
			Help:      "Purchases recorded, segmented by outcome.",
		}, []string{"outcome"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Subsystem: "engine",
			Name:      "conversions_total",
			Help:      "Referrals converted, segmented by conversion type.",
		}, []string{"type"}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "referral",
			Subsystem: "engine",
			Name:      "credits_awarded_total",
			Help:      "Credits granted to referrers and referred accounts.",
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "referral",
			Subsystem: "engine",
			Name:      "referrals_expired_total",
			Help:      "Pending referrals moved to expired.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Subsystem: "accounts",
			Name:      "registrations_total",
			Help:      "Accounts registered, segmented by whether a referral was attached.",
		}, []string{"referred"}),
	}
	if reg != nil {
		reg.MustRegister(m.purchases, m.conversions, m.credits, m.expirations, m.registrations)
	}
	return m
}

func (m *Metrics) observePurchase(outcome string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeConversion(conversion string, credits int) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(conversion).Inc()
	m.credits.Add(float64(credits))
}

func (m *Metrics) observeExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expirations.Add(float64(n))
}

func (m *Metrics) observeRegistration(referred bool) {
	if m == nil {
		return
	}
	label := "false"
	if referred {
		label = "true"
	}
	m.registrations.WithLabelValues(label).Inc()
}
