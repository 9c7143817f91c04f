package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "restops_"

	resultSuccess = "success"
	resultError   = "error"

	updateResultAcked   = "acked"
	updateResultFailed  = "failed"
	updateResultTimeout = "timeout"
)

var (
	registerOnce sync.Once

	telemetryRequests *prometheus.CounterVec
	telemetryErrors   *prometheus.CounterVec
	telemetryLatency  *prometheus.HistogramVec

	healthScores prometheus.Histogram

	loginAttempts *prometheus.CounterVec

	locationBindings prometheus.Counter

	maintenanceScheduled *prometheus.CounterVec

	criticalAlerts *prometheus.CounterVec

	firmwareRequests prometheus.Counter
	firmwareResults  *prometheus.CounterVec

	statementGenerateTotal   *prometheus.CounterVec
	statementGenerateLatency *prometheus.HistogramVec
	statementFreezeTotal     *prometheus.CounterVec
	statementExportTotal     *prometheus.CounterVec

	reportRunTotal   *prometheus.CounterVec
	reportRunLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		telemetryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_requests_total",
				Help: "Total telemetry ingest requests by result",
			},
			[]string{"result"},
		)
		telemetryErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_errors_total",
				Help: "Total telemetry ingest errors by reason",
			},
			[]string{"reason"},
		)
		telemetryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "telemetry_latency_seconds",
				Help:    "Telemetry ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		healthScores = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "equipment_health_score",
				Help:    "Computed equipment health scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		)

		loginAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "staff_login_attempts_total",
				Help: "Total staff PIN login attempts by result",
			},
			[]string{"result"},
		)

		locationBindings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "location_bindings_total",
				Help: "Total device-to-restaurant bindings created",
			},
		)

		maintenanceScheduled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "maintenance_scheduled_total",
				Help: "Total maintenance schedules created by origin",
			},
			[]string{"origin"},
		)

		criticalAlerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "critical_alerts_total",
				Help: "Total critical equipment alerts by kind",
			},
			[]string{"kind"},
		)

		firmwareRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "firmware_update_requests_total",
				Help: "Total issued firmware update commands",
			},
		)
		firmwareResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "firmware_update_results_total",
				Help: "Total firmware update results by status",
			},
			[]string{"status"},
		)

		statementGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_generate_total",
				Help: "Total royalty statement generate operations by result",
			},
			[]string{"result"},
		)
		statementGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_generate_latency_seconds",
				Help:    "Royalty statement generate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		statementFreezeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_freeze_total",
				Help: "Total royalty statement freeze operations by result",
			},
			[]string{"result"},
		)
		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total royalty statement export operations by format and result",
			},
			[]string{"format", "result"},
		)

		reportRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_run_total",
				Help: "Total operations report runs by result",
			},
			[]string{"result"},
		)
		reportRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_run_latency_seconds",
				Help:    "Operations report run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			telemetryRequests,
			telemetryErrors,
			telemetryLatency,
			healthScores,
			loginAttempts,
			locationBindings,
			maintenanceScheduled,
			criticalAlerts,
			firmwareRequests,
			firmwareResults,
			statementGenerateTotal,
			statementGenerateLatency,
			statementFreezeTotal,
			statementExportTotal,
			reportRunTotal,
			reportRunLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveTelemetry records ingest request duration and result.
func ObserveTelemetry(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if telemetryRequests != nil {
		telemetryRequests.WithLabelValues(result).Inc()
	}
	if telemetryLatency != nil {
		telemetryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncTelemetryError increments ingest error counter.
func IncTelemetryError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if telemetryErrors != nil {
		telemetryErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveHealthScore records a computed health score.
func ObserveHealthScore(score float64) {
	if healthScores != nil {
		healthScores.Observe(score)
	}
}

// IncLoginAttempt increments staff login counters.
func IncLoginAttempt(result string) {
	if result == "" {
		result = "unknown"
	}
	if loginAttempts != nil {
		loginAttempts.WithLabelValues(result).Inc()
	}
}

// IncLocationBound increments the binding counter.
func IncLocationBound() {
	if locationBindings != nil {
		locationBindings.Inc()
	}
}

// IncMaintenanceScheduled increments schedule counters by origin.
func IncMaintenanceScheduled(origin string) {
	if origin == "" {
		origin = "unknown"
	}
	if maintenanceScheduled != nil {
		maintenanceScheduled.WithLabelValues(origin).Inc()
	}
}

// IncCriticalAlert increments critical alert counters.
func IncCriticalAlert(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if criticalAlerts != nil {
		criticalAlerts.WithLabelValues(kind).Inc()
	}
}

// IncFirmwareIssued increments issued firmware update counter.
func IncFirmwareIssued() {
	if firmwareRequests != nil {
		firmwareRequests.Inc()
	}
}

// IncFirmwareResult increments firmware result counter.
func IncFirmwareResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if firmwareResults != nil {
		firmwareResults.WithLabelValues(status).Inc()
	}
}

// AddFirmwareTimeouts increments timeout counter by count.
func AddFirmwareTimeouts(count int) {
	if count <= 0 {
		return
	}
	if firmwareResults != nil {
		firmwareResults.WithLabelValues(updateResultTimeout).Add(float64(count))
	}
}

// ObserveStatementGenerate records generate latency and result.
func ObserveStatementGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementGenerateTotal != nil {
		statementGenerateTotal.WithLabelValues(result).Inc()
	}
	if statementGenerateLatency != nil {
		statementGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncStatementFreeze increments freeze counters.
func IncStatementFreeze(result string) {
	if result == "" {
		result = resultSuccess
	}
	if statementFreezeTotal != nil {
		statementFreezeTotal.WithLabelValues(result).Inc()
	}
}

// IncStatementExport increments export counters.
func IncStatementExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
}

// ObserveReportRun records report run latency and result.
func ObserveReportRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reportRunTotal != nil {
		reportRunTotal.WithLabelValues(result).Inc()
	}
	if reportRunLatency != nil {
		reportRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	UpdateResultAcked   = updateResultAcked
	UpdateResultFailed  = updateResultFailed
	UpdateResultTimeout = updateResultTimeout
)
