package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/papertrade/internal/metrics"
)

// Publisher receives one snapshot per tick, after every symbol has been
// updated.
type Publisher interface {
	Broadcast(snap Snapshot)
}

// Ticker drives the oracle on a fixed interval and hands each resulting
// snapshot to the publisher. Ticks never overlap.
type Ticker struct {
	interval  time.Duration
	oracle    *Oracle
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewTicker creates a Ticker. publisher and m may be nil.
func NewTicker(interval time.Duration, oracle *Oracle, publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *Ticker {
	return &Ticker{
		interval:  interval,
		oracle:    oracle,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Run ticks at the configured interval until ctx is cancelled. It always
// returns nil so it can run directly under an errgroup.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("price ticker started", slog.Duration("interval", t.interval))
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("price ticker stopped")
			return nil
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick advances all prices, then publishes exactly once.
func (t *Ticker) tick() {
	snap := t.oracle.Tick()
	t.metrics.ObserveTick()
	t.logger.Debug("prices ticked",
		slog.Uint64("seq", snap.Seq),
		slog.Int("symbols", len(snap.Prices)),
	)
	if t.publisher != nil {
		t.publisher.Broadcast(snap)
	}
}
