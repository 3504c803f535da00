package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		settlementsTotal,
		renewalOrdersTotal,
	)
}

var (
	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement invocations by family, plan and outcome (settled/opened/advanced/finalized/duplicate/noop).",
		},
		[]string{"family", "plan", "outcome"},
	)

	renewalOrdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_orders_created_total",
			Help: "Renewal orders created by the renewal worker for due subscriptions.",
		},
	)
)

func IncSettlement(family, plan, outcome string) {
	settlementsTotal.WithLabelValues(norm(family), norm(plan), norm(outcome)).Inc()
}

func IncRenewalOrder() {
	renewalOrdersTotal.Inc()
}
