package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	subscriptionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_created_total",
		Help: "Subscriptions created by payment or admin grant.",
	})
	subscriptionsExtended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_extended_total",
		Help: "Active subscriptions extended by a renewal.",
	})
	subscriptionsRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_revoked_total",
		Help: "Subscriptions deactivated after access was revoked.",
	}, []string{"source"}) // 'expiry', 'admin'
	revokeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscription_revoke_failures_total",
		Help: "Revocations that failed at the messaging gateway and were left for the next run.",
	})
	paymentsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Successful-payment events by outcome.",
	}, []string{"result"}) // 'ok', 'link_failed', 'rejected', 'error'
	inviteLinks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_links_total",
		Help: "Invite link requests by outcome.",
	}, []string{"result"})
	remindersSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscription_reminders_sent_total",
		Help: "Expiry reminders delivered to users.",
	})
	subscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subscriptions_active",
		Help: "Active subscriptions seen by the last expiry run.",
	})
	expiryRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "expiry_run_duration_seconds",
		Help:    "Duration of a full expiry scan.",
		Buckets: prometheus.DefBuckets,
	})
)

var once sync.Once

// MustRegister регистрирует все коллекторы в default registry ровно один раз
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			subscriptionsCreated,
			subscriptionsExtended,
			subscriptionsRevoked,
			revokeFailures,
			paymentsProcessed,
			inviteLinks,
			remindersSent,
			subscriptionsActive,
			expiryRunDuration,
		)
	})
}

func IncSubscriptionCreated()  { subscriptionsCreated.Inc() }
func IncSubscriptionExtended() { subscriptionsExtended.Inc() }
func IncRevoked(source string) { subscriptionsRevoked.WithLabelValues(source).Inc() }
func IncRevokeFailure()        { revokeFailures.Inc() }
func IncPayment(result string) { paymentsProcessed.WithLabelValues(result).Inc() }
func IncInviteLink(ok bool) {
	if ok {
		inviteLinks.WithLabelValues("ok").Inc()
		return
	}
	inviteLinks.WithLabelValues("failed").Inc()
}
func IncReminderSent() { remindersSent.Inc() }

func SetActiveSubscriptions(n int) { subscriptionsActive.Set(float64(n)) }

func ObserveExpiryRun(seconds float64) { expiryRunDuration.Observe(seconds) }
