package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// Provider call metrics
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_provider_calls_total",
			Help: "Total number of external stats provider calls",
		},
		[]string{"endpoint", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttfl_provider_call_duration_seconds",
			Help:    "Duration of provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_provider_retries_total",
			Help: "Total number of provider calls retried after a timeout",
		},
		[]string{"call"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttfl_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttfl_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttfl_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Averages cache metrics (redis)
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttfl_averages_cache_hits_total",
			Help: "Total number of averages cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttfl_averages_cache_misses_total",
			Help: "Total number of averages cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttfl_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Read cache metrics
	ReadCacheReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_read_cache_reloads_total",
			Help: "Total number of read cache reloads",
		},
		[]string{"trigger", "status"},
	)

	ReadCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ttfl_read_cache_entries",
			Help: "Number of entries in the current read cache snapshot",
		},
		[]string{"kind"},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_sync_operations_total",
			Help: "Total number of sync phase executions",
		},
		[]string{"phase", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttfl_sync_duration_seconds",
			Help:    "Duration of sync phases in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"phase"},
	)

	SyncRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_sync_rows_written_total",
			Help: "Total number of rows written by sync phases",
		},
		[]string{"phase"},
	)

	ScoresInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_scores_inserted_total",
			Help: "Total number of score records inserted",
		},
		[]string{"strategy"},
	)

	ActiveGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttfl_active_games",
			Help: "Number of games today that are not final",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Scheduler metrics
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttfl_scheduler_runs_total",
			Help: "Total number of scheduled runs",
		},
		[]string{"job"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttfl_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttfl_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync run",
		},
	)
)

// RecordProviderCall records a provider call metric
func RecordProviderCall(endpoint, status string, duration float64) {
	ProviderCallsTotal.WithLabelValues(endpoint, status).Inc()
	ProviderCallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordProviderRetry records a timeout retry
func RecordProviderRetry(call string) {
	if call == "" {
		call = "unnamed"
	}
	ProviderRetriesTotal.WithLabelValues(call).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordReadCacheReload records a reload attempt and, on success, the snapshot sizes
func RecordReadCacheReload(trigger string, err error, games, teams, players int) {
	if err != nil {
		ReadCacheReloadsTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	ReadCacheReloadsTotal.WithLabelValues(trigger, "success").Inc()
	ReadCacheEntries.WithLabelValues("games").Set(float64(games))
	ReadCacheEntries.WithLabelValues("teams").Set(float64(teams))
	ReadCacheEntries.WithLabelValues("players").Set(float64(players))
}

// RecordSync records one phase execution
func RecordSync(phase, status string, duration float64, rowsWritten int) {
	SyncOperationsTotal.WithLabelValues(phase, status).Inc()
	SyncDuration.WithLabelValues(phase).Observe(duration)
	if rowsWritten > 0 {
		SyncRowsWritten.WithLabelValues(phase).Add(float64(rowsWritten))
	}
}

// RecordRunSuccess marks the end of a run that finished without a storage failure
func RecordRunSuccess() {
	LastSuccessfulSync.SetToCurrentTime()
}

// RecordScoresInserted records score inserts by strategy ("box_score" or "game_log")
func RecordScoresInserted(strategy string, n int) {
	if n > 0 {
		ScoresInserted.WithLabelValues(strategy).Add(float64(n))
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordSchedulerRun records a scheduler job execution
func RecordSchedulerRun(job string) {
	SchedulerRunsTotal.WithLabelValues(job).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
