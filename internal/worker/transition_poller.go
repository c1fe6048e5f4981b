package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/service"
)

// TransitionPoller periodically executes due automatic transitions. It is the
// single writer over schedule records; a crash mid-batch leaves executed
// records marked and in-flight ones pending, safe to retry on the next tick.
type TransitionPoller struct {
	scheduler *service.SchedulerService
	logger    *zap.Logger

	pollInterval time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
}

// NewTransitionPoller creates a poller ticking at the given interval.
func NewTransitionPoller(scheduler *service.SchedulerService, pollInterval time.Duration, logger *zap.Logger) *TransitionPoller {
	return &TransitionPoller{
		scheduler:    scheduler,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Name implements Worker.
func (p *TransitionPoller) Name() string {
	return "TransitionPoller"
}

// Start implements Worker.
func (p *TransitionPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("transition poller is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.isRunning = true

	p.logger.Info("TransitionPoller started",
		zap.Duration("poll_interval", p.pollInterval))

	go p.pollLoop(runCtx)
	return nil
}

// Stop implements Worker.
func (p *TransitionPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return
	}
	p.isRunning = false
	p.cancel()
	p.logger.Info("TransitionPoller stopped")
}

func (p *TransitionPoller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Process immediately on start.
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *TransitionPoller) poll(ctx context.Context) {
	executed, err := p.scheduler.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		p.logger.Error("Due transition poll failed", zap.Error(err))
		return
	}
	if executed > 0 {
		p.logger.Debug("Due transitions executed", zap.Int("count", executed))
	}
}
