package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronRunner schedules named maintenance jobs (SLA refresh, document
// expiration) on standard five-field cron expressions.
type CronRunner struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCronRunner creates an empty cron runner.
func NewCronRunner(logger *zap.Logger) *CronRunner {
	return &CronRunner{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddJob registers a job under a cron spec (minute hour dom month dow).
func (c *CronRunner) AddJob(spec, name string, fn func(ctx context.Context)) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q for job %s: %w", spec, name, err)
	}

	_, err := c.cron.AddFunc(spec, func() {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		if ctx == nil {
			return
		}

		c.logger.Debug("Cron job firing", zap.String("job", name))
		fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register cron job %s: %w", name, err)
	}

	c.logger.Info("Cron job registered",
		zap.String("job", name),
		zap.String("spec", spec))
	return nil
}

// Name implements Worker.
func (c *CronRunner) Name() string {
	return "CronRunner"
}

// Start implements Worker.
func (c *CronRunner) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isRunning {
		return fmt.Errorf("cron runner is already running")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.isRunning = true
	c.cron.Start()
	return nil
}

// Stop implements Worker. Waits for in-flight jobs to finish.
func (c *CronRunner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return
	}
	c.isRunning = false
	c.cancel()
	<-c.cron.Stop().Done()
}
