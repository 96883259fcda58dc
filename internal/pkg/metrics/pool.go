package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// ObservePool snapshots connection pool gauges. Called periodically
// from the app's background collector.
func ObservePool(pool *pgxpool.Pool) {
	stat := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
}
