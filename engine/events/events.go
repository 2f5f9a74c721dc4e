// Package events announces finished ingestions on NATS.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/pdfqa/engine/ingest"
	"github.com/WessleyAI/pdfqa/pkg/natsutil"
)

// SubjectIngestCompleted carries one IngestCompleted per successful run.
const SubjectIngestCompleted = "pdfqa.ingest.completed"

const flushTimeout = 2 * time.Second

// IngestCompleted is the event payload.
type IngestCompleted struct {
	Collection   string    `json:"collection"`
	Source       string    `json:"source"`
	Chunks       int       `json:"chunks"`
	EmbeddingTag string    `json:"embedding_tag"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NATSNotifier publishes IngestCompleted events.
type NATSNotifier struct {
	nc     *nats.Conn
	now    func() time.Time
	logger *slog.Logger
}

var _ ingest.Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier creates a notifier on an open connection.
func NewNATSNotifier(nc *nats.Conn, logger *slog.Logger) *NATSNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{nc: nc, now: time.Now, logger: logger}
}

// Completed publishes r and flushes so the event leaves before a CLI exits.
func (n *NATSNotifier) Completed(ctx context.Context, r ingest.Result) error {
	ev := IngestCompleted{
		Collection:   r.Collection,
		Source:       r.Source,
		Chunks:       r.Chunks,
		EmbeddingTag: r.EmbeddingTag,
		CompletedAt:  n.now().UTC(),
	}
	if err := natsutil.Publish(ctx, n.nc, SubjectIngestCompleted, ev); err != nil {
		return err
	}
	// FlushWithContext requires a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("events: flush: %w", err)
	}
	n.logger.Debug("events: published", "subject", SubjectIngestCompleted, "collection", r.Collection)
	return nil
}

// Nop discards events. It is used when NATS_URL is unset.
type Nop struct{}

// Completed does nothing.
func (Nop) Completed(context.Context, ingest.Result) error { return nil }

// Subscribe calls handler for every IngestCompleted event.
func Subscribe(nc *nats.Conn, handler func(context.Context, IngestCompleted)) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, SubjectIngestCompleted, handler)
}
