package metrics

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorLog struct {
	lines []string
}

func (e *errorLog) Errorf(format string, args ...any) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func TestManager_Counter(t *testing.T) {
	reg := prometheus.NewRegistry()
	log := &errorLog{}
	m := NewMetricsManager(reg, log)

	m.NewCounter("app_sql_rendered_total", "statements rendered")
	m.IncrementCounter(context.Background(), "app_sql_rendered_total", "dialect", "postgres")
	m.IncrementCounter(context.Background(), "app_sql_rendered_total", "dialect", "postgres")
	m.IncrementCounter(context.Background(), "app_sql_rendered_total", "dialect", "mysql")

	expected := `
# HELP app_sql_rendered_total statements rendered
# TYPE app_sql_rendered_total counter
app_sql_rendered_total{dialect="mysql"} 1
app_sql_rendered_total{dialect="postgres"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "app_sql_rendered_total"))
	assert.Empty(t, log.lines)
}

func TestManager_Histogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsManager(reg, &errorLog{})

	m.NewHistogram("app_sql_stats", "statement latency", 1, 10)
	m.RecordHistogram(context.Background(), "app_sql_stats", 4, "type", "SELECT")
	m.RecordHistogram(context.Background(), "app_sql_stats", 40, "type", "SELECT")

	count, err := testutil.GatherAndCount(reg, "app_sql_stats")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record func(m Manager)
		errMsg string
	}{
		{
			name:   "unregistered",
			record: func(m Manager) { m.IncrementCounter(context.Background(), "missing") },
			errMsg: errMetricNotRegistered.Error(),
		},
		{
			name:   "odd labels",
			record: func(m Manager) { m.IncrementCounter(context.Background(), "c", "dialect") },
			errMsg: errOddLabels.Error(),
		},
		{
			name:   "counter recorded as histogram",
			record: func(m Manager) { m.RecordHistogram(context.Background(), "c", 1) },
			errMsg: errMetricNotRegistered.Error(),
		},
		{
			name: "label keys change",
			record: func(m Manager) {
				m.IncrementCounter(context.Background(), "c", "a", "1")
				m.IncrementCounter(context.Background(), "c", "b", "1")
			},
			errMsg: errLabelMismatch.Error(),
		},
		{
			name:   "duplicate registration",
			record: func(m Manager) { m.NewCounter("c", "again") },
			errMsg: errMetricExists.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := &errorLog{}
			m := NewMetricsManager(prometheus.NewRegistry(), log)
			m.NewCounter("c", "counter")

			tc.record(m)

			require.Len(t, log.lines, 1)
			assert.Contains(t, log.lines[0], tc.errMsg)
		})
	}
}
