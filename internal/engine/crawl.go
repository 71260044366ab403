package engine

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/eventbus"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// Crawl runs the frontier/scheduler loop to completion: seed, fan out across
// an effective-concurrency worker pool, and drain until the frontier is
// empty, every in-flight fetch has released its permit, and every guard
// subscriber has caught up. Only one Crawl may run at a time per Engine.
func (e *Engine) Crawl(ctx context.Context) (CrawlStats, failure.ClassifiedError) {
	runCtx, unlock, err := e.beginRun(ctx)
	if err != nil {
		return CrawlStats{}, err
	}
	defer unlock()

	e.initForRun()
	stopPipeline := e.startDocsPipeline(runCtx)
	defer stopPipeline()

	for _, seed := range e.cfg.SeedURLs() {
		e.submitForAdmission(seed, frontier.SourceSeed, 0)
	}

	return e.runLoop(runCtx), nil
}

// startDocsPipeline runs the configured DocsPipeline's event loop in its
// own goroutine for the duration of one Crawl/CrawlSitemap call, via a
// guard subscription scoped to this run. It returns a no-op closer when no
// pipeline is configured, so callers can always `defer stopPipeline()`
// unconditionally; otherwise the closer unsubscribes (which closes the
// subscription channel and lets the goroutine return) and waits for it to
// exit.
func (e *Engine) startDocsPipeline(runCtx context.Context) func() {
	e.mu.Lock()
	pipeline := e.docsPipeline
	e.mu.Unlock()
	if pipeline == nil {
		return func() {}
	}

	sub := e.bus.SubscribeGuard(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pipeline.Run(runCtx, e.bus, sub)
	}()
	return func() {
		e.bus.Wait()
		e.bus.Unsubscribe(sub)
		<-done
	}
}

// beginRun validates and records the Running transition, returning a
// cancelable context and a function the caller must defer to restore
// StateStopped once the run ends.
func (e *Engine) beginRun(ctx context.Context) (context.Context, func(), failure.ClassifiedError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning || e.state == StatePaused {
		return nil, nil, &EngineError{Message: "crawl already in progress"}
	}
	e.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	return runCtx, func() {
		e.mu.Lock()
		e.state = StateStopped
		e.cancel = nil
		e.mu.Unlock()
	}, nil
}

// runLoop drains the already-seeded frontier across an effective-concurrency
// worker pool until it is empty, every in-flight fetch has released its
// permit, and every guard subscriber has caught up with what was published.
func (e *Engine) runLoop(runCtx context.Context) CrawlStats {
	startedAt := time.Now()
	var totalErrors int32
	var totalPages int32

	concurrency := effectiveConcurrency(e.cfg.Concurrency(), e.loadSampler)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var outstanding int32

	const idlePollInterval = 10 * time.Millisecond

pump:
	for {
		select {
		case <-runCtx.Done():
			break pump
		default:
		}

		token, ok := e.crawlFrontier.Dequeue()
		if !ok {
			if atomic.LoadInt32(&outstanding) == 0 {
				break pump
			}
			time.Sleep(idlePollInterval)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break pump
		}

		atomic.AddInt32(&outstanding, 1)
		wg.Add(1)
		go func(tok frontier.CrawlToken) {
			defer func() {
				<-sem
				atomic.AddInt32(&outstanding, -1)
				wg.Done()
			}()
			ok := e.processToken(runCtx, tok)
			if ok {
				atomic.AddInt32(&totalPages, 1)
			} else {
				atomic.AddInt32(&totalErrors, 1)
			}
		}(token)
	}

	wg.Wait()
	e.bus.Wait()

	duration := time.Since(startedAt)
	stats := CrawlStats{
		TotalPages:  int(totalPages),
		TotalErrors: int(totalErrors),
		Duration:    duration,
	}
	e.crawlFinalizer.RecordFinalCrawlStats(stats.TotalPages, stats.TotalErrors, 0, duration)
	return stats
}

// processToken fetches one admitted URL, extracts its outbound links,
// submits newly discovered ones for admission, and publishes the result on
// the event bus. It returns false when the fetch fails or the host wait is
// cancelled, true otherwise (a link-extraction failure still returns true).
func (e *Engine) processToken(ctx context.Context, tok frontier.CrawlToken) bool {
	target := tok.URL()
	host := target.Host

	delay := e.rateLimiter.ResolveDelay(host)
	if delay > 0 {
		e.sleeper.Sleep(delay)
	}

	e.mu.Lock()
	bucket := e.tokenBucket
	e.mu.Unlock()
	if bucket != nil {
		if waitErr := bucket.Wait(ctx, host); waitErr != nil {
			return false
		}
	}

	result, err := e.htmlFetcher.Fetch(ctx, tok.Depth(), target, retryParam(e.cfg))
	if err != nil {
		e.rateLimiter.Backoff(host)
		e.bus.Publish(eventbus.Event{
			Kind: eventbus.EventPageFailed,
			Payload: PageFailure{
				URL:     target,
				Depth:   tok.Depth(),
				Reason:  "fetch_failed",
				Fatal:   err.Severity() == failure.SeverityFatal,
				Message: err.Error(),
			},
		})
		return false
	}
	e.rateLimiter.ResetBackoff(host)
	e.rateLimiter.MarkLastFetchAsNow(host)

	links, linkErr := e.linkExtractor.ExtractLinks(result.URL(), result.Body())
	if linkErr != nil {
		// A link-extraction failure is not a fetch failure: the page still
		// counts as crawled, it simply yielded no further frontier work.
		links = nil
	}

	for _, link := range links {
		e.submitForAdmission(link, frontier.SourceCrawl, tok.Depth()+1)
	}

	e.bus.Publish(eventbus.Event{
		Kind: eventbus.EventPageFetched,
		Payload: Page{
			URL:           result.URL(),
			Body:          result.Body(),
			StatusCode:    result.Code(),
			Depth:         tok.Depth(),
			FetchedAt:     result.FetchedAt(),
			RedirectChain: result.RedirectChain(),
		},
	})

	return true
}

// submitForAdmission runs target through the policy gate and, if allowed,
// submits it to the frontier. It returns whether the URL was admitted.
func (e *Engine) submitForAdmission(target url.URL, source frontier.SourceContext, depth int) bool {
	candidate := frontier.NewCrawlAdmissionCandidate(
		target,
		source,
		frontier.NewDiscoveryMetadata(depth, nil),
	)

	decision, err := e.gate.Admit(candidate)
	if err != nil {
		return false
	}
	if !decision.Allowed {
		return false
	}
	if decision.CrawlDelay != nil {
		e.rateLimiter.SetCrawlDelay(target.Host, *decision.CrawlDelay)
	}

	e.crawlFrontier.Submit(candidate)
	if e.persistence != nil {
		e.persistence.AppendFrontier(target, depth, string(source))
		e.persistence.AppendVisited(target.String())
	}
	return true
}

// retryParam builds a retry.RetryParam from cfg, mirroring
// internal/scheduler.RetryParam's shape for the fetcher's retry/backoff loop.
func retryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
}
