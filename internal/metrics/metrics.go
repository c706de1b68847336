package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total bot commands processed",
		},
		[]string{"command"},
	)
	CreditOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_credit_outcomes_total",
			Help: "Referral finalize outcomes by status",
		},
		[]string{"status"},
	)
	SubscriptionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_checks_total",
			Help: "Channel subscription checks by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CreditOutcomes)
	prometheus.MustRegister(SubscriptionChecks)
}
