package engine

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/policy"
	"github.com/rohmanhakim/docs-crawler/internal/sitemap"
)

// CrawlSitemap seeds the frontier from a sitemap (or sitemap-index) URL
// instead of a single seed page, then runs the same admission/fetch/extract
// loop Crawl does.
func (e *Engine) CrawlSitemap(ctx context.Context, sitemapURL url.URL) (CrawlStats, error) {
	runCtx, unlock, err := e.beginRun(ctx)
	if err != nil {
		return CrawlStats{}, err
	}
	defer unlock()

	e.initForRun()
	stopPipeline := e.startDocsPipeline(runCtx)
	defer stopPipeline()

	reader := sitemap.NewReader(&http.Client{}, e.cfg.UserAgent())
	pages, readErr := reader.ReadURLs(runCtx, sitemapURL)
	if readErr != nil {
		return CrawlStats{}, readErr
	}

	if e.seedHost == "" && len(pages) > 0 {
		e.seedHost = pages[0].Host
		e.gate = policy.NewGate(e.cfg, e.robot, e.seedHost)
	}

	for _, page := range pages {
		e.submitForAdmission(page, frontier.SourceSeed, 0)
	}

	return e.runLoop(runCtx), nil
}
