package rag

import (
	"time"

	"github.com/WessleyAI/pdfqa/pkg/metrics"
)

type queryMetrics struct {
	queries  *metrics.Counter
	errors   *metrics.Counter
	duration *metrics.Histogram
}

func newQueryMetrics(reg *metrics.Registry) *queryMetrics {
	if reg == nil {
		return nil
	}
	return &queryMetrics{
		queries:  reg.Counter("pdfqa_queries_total", "Questions answered or attempted."),
		errors:   reg.Counter("pdfqa_query_errors_total", "Questions that failed."),
		duration: reg.Histogram("pdfqa_query_duration_seconds", "Wall time of one question.", nil),
	}
}

func (m *queryMetrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.Inc()
	if err != nil {
		m.errors.Inc()
	}
	m.duration.Observe(d.Seconds())
}
