package ingest

import (
	"errors"
	"time"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/pkg/metrics"
)

type pipelineMetrics struct {
	reg      *metrics.Registry
	chunks   *metrics.Counter
	duration *metrics.Histogram
}

func newPipelineMetrics(reg *metrics.Registry) *pipelineMetrics {
	if reg == nil {
		return nil
	}
	return &pipelineMetrics{
		reg:      reg,
		chunks:   reg.Counter("pdfqa_ingest_chunks_total", "Chunks written to the vector store."),
		duration: reg.Histogram("pdfqa_ingest_duration_seconds", "Wall time of one ingestion run.", nil),
	}
}

func (m *pipelineMetrics) observe(res Result, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrNoChunks):
		status = "empty"
	case err != nil:
		status = "error"
	}
	m.reg.Counter(metrics.WithLabels("pdfqa_ingest_runs_total", "status", status), "Ingestion runs by outcome.").Inc()
	m.chunks.Add(int64(res.Chunks))
	m.duration.Observe(d.Seconds())
}
