package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TableLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bqfixture_table_loads_total",
			Help: "Total number of table load attempts",
		},
		[]string{"status"},
	)

	TableLoadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bqfixture_table_load_retries_total",
			Help: "Total number of table load retries",
		},
	)

	RowsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bqfixture_rows_inserted_total",
			Help: "Total number of fixture rows inserted",
		},
	)

	LoadPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bqfixture_load_poll_duration_seconds",
			Help:    "Time spent waiting for inserted rows to become visible",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~128s
		},
	)

	StaleDatasetsSweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bqfixture_stale_datasets_swept_total",
			Help: "Total number of stale transient datasets swept",
		},
		[]string{"status"},
	)
)
