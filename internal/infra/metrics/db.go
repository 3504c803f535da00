package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(dbErrorsTotal)
}

var dbErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Database operation failures by repository.",
	},
	[]string{"repo"},
)

func IncDBError(repo string) {
	dbErrorsTotal.WithLabelValues(norm(repo)).Inc()
}
