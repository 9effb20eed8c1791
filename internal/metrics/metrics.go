package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderStatusUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_order_status_updates_total",
		Help: "Total number of successful order status transitions.",
	})

	ReturnsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_returns_approved_total",
		Help: "Total number of return requests approved.",
	})

	ReturnsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_returns_rejected_total",
		Help: "Total number of return requests rejected.",
	})

	PickupsMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_pickups_marked_total",
		Help: "Total number of returned items marked as picked up.",
	})

	ReplacementsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_replacements_created_total",
		Help: "Total number of replacement orders created.",
	})

	RefundsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_refunds_processed_total",
		Help: "Total number of refunds processed.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminorders_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OrderCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adminorders_order_cache_items",
		Help: "Current number of order snapshots held in the cache.",
	})

	StaleSnapshotsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminorders_stale_snapshots_discarded_total",
		Help: "Total number of incoming snapshots dropped for carrying an old revision.",
	})
)
