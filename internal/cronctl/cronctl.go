// Package cronctl schedules recurring crawl runs on a cron expression,
// refusing to start a new run while one is still in flight.
package cronctl

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/rohmanhakim/docs-crawler/internal/engine"
)

// CrawlFunc runs one crawl to completion. It is typically Engine.Crawl bound
// to a context and a fixed set of seeds.
type CrawlFunc func(ctx context.Context) (engine.CrawlStats, error)

// Controller drives CrawlFunc on a cron schedule, skipping a trigger outright
// if the previous run hasn't finished instead of queuing or overlapping it.
type Controller struct {
	cron   *cron.Cron
	fn     CrawlFunc
	ctx    context.Context
	cancel context.CancelFunc

	running sync.Mutex

	mu       sync.Mutex
	lastErr  error
	lastSkip bool
	runCount int
}

// NewController builds a Controller that invokes fn each time the spec
// passed to Start fires. spec follows robfig/cron's standard five-field
// syntax plus descriptors ("@every 1h", "@daily").
func NewController(fn CrawlFunc) *Controller {
	return &Controller{
		cron: cron.New(),
		fn:   fn,
	}
}

// Start registers spec and begins firing triggers in the background. It
// returns an error if spec cannot be parsed.
func (c *Controller) Start(ctx context.Context, spec string) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	_, err := c.cron.AddFunc(spec, c.fire)
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// fire is the cron trigger entrypoint. It skips the run entirely — rather
// than queuing it — when the prior invocation is still running.
func (c *Controller) fire() {
	if !c.running.TryLock() {
		c.mu.Lock()
		c.lastSkip = true
		c.mu.Unlock()
		return
	}
	defer c.running.Unlock()

	_, err := c.fn(c.ctx)

	c.mu.Lock()
	c.lastErr = err
	c.lastSkip = false
	c.runCount++
	c.mu.Unlock()
}

// Stop cancels the context passed to any in-flight run and halts the cron
// scheduler, waiting for the current trigger callback (if any) to return.
func (c *Controller) Stop() {
	ctx := c.cron.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	<-ctx.Done()
}

// LastResult reports the outcome of the most recently completed trigger:
// whether it was skipped due to overlap, the error it returned (if any),
// and the total number of runs that actually executed.
func (c *Controller) LastResult() (skipped bool, err error, runCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSkip, c.lastErr, c.runCount
}
