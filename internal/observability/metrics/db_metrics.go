package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "maintenance_open",
			Help: "Maintenance schedules currently scheduled or due",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM maintenance_schedules WHERE status IN ('scheduled','due')")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "location_sessions_active",
			Help: "Active unexpired device-to-restaurant bindings",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM location_sessions WHERE active = TRUE AND expires_at > NOW()")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
