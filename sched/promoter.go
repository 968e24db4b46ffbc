package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/conveyor/job"
)

// Promoter periodically moves due delayed jobs into the waiting state so
// they enter the ready order. Claiming treats due delayed jobs as ready
// regardless, so the promoter is a visibility nicety, not a correctness
// requirement; the interval bounds how stale listings can get.
type Promoter struct {
	store    job.Store
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPromoter creates a delay promoter that runs every interval.
func NewPromoter(store job.Store, interval time.Duration, logger *slog.Logger) *Promoter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Promoter{
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the promotion loop.
func (p *Promoter) Start(_ context.Context) error {
	p.wg.Add(1)
	go p.loop()
	p.logger.Info("delay promoter started", slog.Duration("interval", p.interval))
	return nil
}

// Stop signals the promoter to stop and waits for the loop to finish.
func (p *Promoter) Stop(_ context.Context) error {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("delay promoter stopped")
	return nil
}

func (p *Promoter) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Promote(context.Background())
		}
	}
}

// Promote runs a single promotion pass. Exported so the engine can force
// a pass on demand.
func (p *Promoter) Promote(ctx context.Context) {
	n, err := p.store.PromoteDueJobs(ctx, time.Now().UTC())
	if err != nil {
		p.logger.Error("delay promotion error", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		p.logger.Debug("delayed jobs promoted", slog.Int("count", n))
	}
}
