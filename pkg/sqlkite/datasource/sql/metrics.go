package sql

import "context"

//go:generate mockgen -source=metrics.go -destination=mock_metrics.go -package=sql

// Metrics records the statement latency histogram.
type Metrics interface {
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
}
