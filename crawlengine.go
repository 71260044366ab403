// Package crawlengine is the public entrypoint for driving a crawl: build a
// Config, construct a Controller, and call Crawl, Scrape, or CrawlSitemap.
// Everything underneath (frontier, policy gate, fetcher, extractor, event
// bus) lives in internal/engine; this package only re-exports the pieces a
// caller outside the module needs to wire up a run.
package crawlengine

import (
	"context"
	"net/url"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/cronctl"
	"github.com/rohmanhakim/docs-crawler/internal/engine"
	"github.com/rohmanhakim/docs-crawler/internal/eventbus"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// Re-exported so callers never need to import internal/engine or
// internal/eventbus directly.
type (
	Config       = config.Config
	State        = engine.State
	Page         = engine.Page
	PageFailure  = engine.PageFailure
	CrawlStats   = engine.CrawlStats
	Event        = eventbus.Event
	EventKind    = eventbus.EventKind
	Subscription = eventbus.Subscription
)

const (
	StateNew        = engine.StateNew
	StateConfigured = engine.StateConfigured
	StateRunning    = engine.StateRunning
	StatePaused     = engine.StatePaused
	StateStopped    = engine.StateStopped
)

const (
	EventPageFetched = eventbus.EventPageFetched
	EventPageFailed  = eventbus.EventPageFailed
	EventCrawlDone   = eventbus.EventCrawlDone
)

// Controller is the public handle on a single crawl engine: one Config, one
// underlying frontier/event bus, reusable across runs via ClearAll as long
// as only one Crawl/CrawlSitemap is in flight at a time.
type Controller struct {
	eng *engine.Engine
}

// New builds a Controller wired with production collaborators for cfg.
func New(cfg Config) *Controller {
	return &Controller{eng: engine.New(cfg)}
}

// State reports the controller's current lifecycle position.
func (c *Controller) State() State {
	return c.eng.State()
}

// Crawl seeds the frontier from cfg.SeedURLs and runs the admission/fetch/
// extract loop to completion, returning aggregate stats.
func (c *Controller) Crawl(ctx context.Context) (CrawlStats, failure.ClassifiedError) {
	return c.eng.Crawl(ctx)
}

// CrawlSitemap seeds the frontier from a sitemap (or sitemap-index) URL
// instead of cfg.SeedURLs, then runs the same loop Crawl does.
func (c *Controller) CrawlSitemap(ctx context.Context, sitemapURL url.URL) (CrawlStats, error) {
	return c.eng.CrawlSitemap(ctx, sitemapURL)
}

// Scrape fetches a single URL outside the frontier loop: no admission
// check, no link follow-up, no event bus publish.
func (c *Controller) Scrape(ctx context.Context, target url.URL) (Page, failure.ClassifiedError) {
	return c.eng.Scrape(ctx, target)
}

// Subscribe registers a best-effort event subscriber (metrics, logging).
func (c *Controller) Subscribe(capacity int) *Subscription {
	return c.eng.Subscribe(capacity)
}

// SubscribeGuard registers a subscriber whose processing backlog gates
// crawl termination — use this for a downstream pipeline that must consume
// every fetched page before Crawl is allowed to return.
func (c *Controller) SubscribeGuard(capacity int) *Subscription {
	return c.eng.SubscribeGuard(capacity)
}

// Unsubscribe removes sub from the event bus.
func (c *Controller) Unsubscribe(sub *Subscription) {
	c.eng.Unsubscribe(sub)
}

// Done marks one guard event as processed. Required from every
// SubscribeGuard subscriber after it finishes handling an event.
func (c *Controller) Done() {
	c.eng.Done()
}

// ClearAll resets the frontier and visited set between runs. Refuses while
// a crawl is running; call Stop first.
func (c *Controller) ClearAll() error {
	return c.eng.ClearAll()
}

// Stop cancels an in-flight Crawl/CrawlSitemap cooperatively. A Scrape runs
// under the caller's ctx and is not affected.
func (c *Controller) Stop() {
	c.eng.Stop()
}

// NewCronController wraps this Controller's Crawl in a cron schedule,
// skipping any trigger that would overlap a still-running crawl.
func (c *Controller) NewCronController() *cronctl.Controller {
	return cronctl.NewController(func(ctx context.Context) (CrawlStats, error) {
		stats, err := c.Crawl(ctx)
		if err != nil {
			return stats, err
		}
		return stats, nil
	})
}
