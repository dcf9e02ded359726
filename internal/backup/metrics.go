package backup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var backupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "backups_total",
		Help: "Total number of backup creation attempts",
	},
	[]string{"provider", "outcome"},
)

// CountBackup records the outcome of one backup creation attempt.
func CountBackup(provider string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	backupsTotal.WithLabelValues(provider, outcome).Inc()
}
