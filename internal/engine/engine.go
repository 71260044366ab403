// Package engine is the concurrent control plane that drives a crawl:
// frontier, policy gate, fetcher, and link extractor wired around a worker
// pool sized by effective concurrency, publishing fetched pages on an event
// bus instead of calling a fixed downstream pipeline directly.
package engine

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/eventbus"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/policy"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/scope"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// Engine owns the mutable state of a single crawl run. A fresh Engine may
// be reused across multiple Crawl calls via ClearAll, but only one Crawl
// may be in flight at a time.
type Engine struct {
	mu    sync.Mutex
	state State

	cfg            config.Config
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer

	crawlFrontier *frontier.CrawlFrontier
	gate          *policy.Gate
	robot         robots.Robot
	htmlFetcher   fetcher.Fetcher
	linkExtractor extractor.LinkExtractor
	rateLimiter   limiter.RateLimiter
	sleeper       timeutil.Sleeper
	bus           *eventbus.Bus
	loadSampler   LoadSampler
	persistence   storage.PersistenceSink
	capabilities  Capabilities
	docsPipeline  *DocsPipeline
	tokenBucket   *limiter.HostTokenBucket

	seedHost string
	cancel   func()
}

// SetHostRateLimit layers a sustained per-host token-bucket throttle (on
// top of the base delay/backoff clock in pkg/limiter.ConcurrentRateLimiter)
// in front of every fetch: at most rps requests per second per host, with
// burst allowed above that rate. Unset by default, meaning only the delay
// clock governs pacing.
func (e *Engine) SetHostRateLimit(rps float64, burst int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokenBucket = limiter.NewHostTokenBucket(rps, burst)
}

// Capabilities holds forwarded options the core crawl loop stores but never
// interprets itself — browser rendering, HTTP caching, LLM-assisted
// extraction hints. They exist so a caller's config round-trips through
// Engine even though only a downstream collaborator (wired externally via
// SubscribeGuard) acts on them.
type Capabilities struct {
	BrowserRenderingEnabled bool
	HTTPCacheDir            string
	LLMExtractionHint       string
}

// SetPersistence attaches an optional durability log. When set, every
// admitted URL is appended to it after being queued; nil (the default)
// runs the crawl purely in-memory.
func (e *Engine) SetPersistence(sink storage.PersistenceSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persistence = sink
}

// SetCapabilities stores opaque forwarded options for later retrieval by
// Capabilities(). The core loop never branches on these fields.
func (e *Engine) SetCapabilities(caps Capabilities) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capabilities = caps
}

// Capabilities returns the opaque forwarded options set via
// SetCapabilities.
func (e *Engine) Capabilities() Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capabilities
}

// EnableDocsPipeline wires the sanitize/convert/resolve-assets/normalize/
// write pipeline as a guard subscriber, so the next Crawl or CrawlSitemap
// doesn't return until every fetched page has gone through it. Unlike
// Capabilities, this is interpreted directly by the engine: it is what
// actually starts the docs pipeline goroutine, not just forwarded.
func (e *Engine) EnableDocsPipeline(pipeline *DocsPipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docsPipeline = pipeline
}

// New constructs an Engine wired with the production collaborators, mirroring
// internal/scheduler.NewScheduler's construct-everything-once shape.
func New(cfg config.Config) *Engine {
	recorder := metadata.NewRecorder("engine")
	cachedRobot := robots.NewCachedRobot(&recorder)
	htmlFetcher := fetcher.NewHtmlFetcher(&recorder)
	linkExtractor := extractor.NewLinkExtractor(&recorder)
	rateLimiter := limiter.NewConcurrentRateLimiter()
	sleeper := timeutil.NewRealSleeper()

	return &Engine{
		state:          StateNew,
		cfg:            cfg,
		metadataSink:   &recorder,
		crawlFinalizer: &recorder,
		crawlFrontier:  frontier.NewCrawlFrontier(),
		robot:          &cachedRobot,
		htmlFetcher:    &htmlFetcher,
		linkExtractor:  linkExtractor,
		rateLimiter:    rateLimiter,
		sleeper:        &sleeper,
		bus:            eventbus.NewBus(),
		loadSampler:    NewRuntimeLoadSampler(),
	}
}

// NewWithDeps constructs an Engine with injected collaborators, for tests.
// Any nil dependency falls back to the same default New uses.
func NewWithDeps(
	cfg config.Config,
	metadataSink metadata.MetadataSink,
	crawlFinalizer metadata.CrawlFinalizer,
	crawlFrontier *frontier.CrawlFrontier,
	robot robots.Robot,
	htmlFetcher fetcher.Fetcher,
	linkExtractor extractor.LinkExtractor,
	rateLimiter limiter.RateLimiter,
	sleeper timeutil.Sleeper,
	loadSampler LoadSampler,
) *Engine {
	if metadataSink == nil {
		metadataSink = metadata.NoopSink{}
	}
	if crawlFinalizer == nil {
		crawlFinalizer = metadata.NoopSink{}
	}
	if crawlFrontier == nil {
		crawlFrontier = frontier.NewCrawlFrontier()
	}
	if robot == nil {
		r := robots.NewCachedRobot(metadataSink)
		robot = &r
	}
	if htmlFetcher == nil {
		f := fetcher.NewHtmlFetcher(metadataSink)
		htmlFetcher = &f
	}
	if rateLimiter == nil {
		rateLimiter = limiter.NewConcurrentRateLimiter()
	}
	if sleeper == nil {
		sleeper = timeutil.NewRealSleeper()
	}
	if loadSampler == nil {
		loadSampler = NewRuntimeLoadSampler()
	}

	return &Engine{
		state:          StateNew,
		cfg:            cfg,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		crawlFrontier:  crawlFrontier,
		robot:          robot,
		htmlFetcher:    htmlFetcher,
		linkExtractor:  linkExtractor,
		rateLimiter:    rateLimiter,
		sleeper:        sleeper,
		bus:            eventbus.NewBus(),
		loadSampler:    loadSampler,
	}
}

// State reports the engine's current lifecycle position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers a best-effort event subscriber (metrics, logging).
func (e *Engine) Subscribe(capacity int) *eventbus.Subscription {
	return e.bus.Subscribe(capacity)
}

// SubscribeGuard registers a subscriber whose processing backlog gates
// crawl termination — the downstream docs conversion pipeline.
func (e *Engine) SubscribeGuard(capacity int) *eventbus.Subscription {
	return e.bus.SubscribeGuard(capacity)
}

// Unsubscribe removes sub from the event bus.
func (e *Engine) Unsubscribe(sub *eventbus.Subscription) {
	e.bus.Unsubscribe(sub)
}

// Done marks one guard event as processed, releasing the engine's
// outstanding-work counter by one. Required from every SubscribeGuard
// subscriber after it finishes handling an event.
func (e *Engine) Done() {
	e.bus.Done()
}

// ClearAll resets the frontier and visited set between runs. Refuses while
// a crawl is running; callers must Stop first.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning || e.state == StatePaused {
		return &EngineError{Message: "cannot ClearAll while a crawl is running"}
	}
	e.crawlFrontier = frontier.NewCrawlFrontier()
	e.state = StateConfigured
	return nil
}

// Stop cancels an in-flight Crawl cooperatively; it returns once the
// cancellation signal has been issued, not once the crawl has fully drained.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) initForRun() {
	e.rateLimiter.SetBaseDelay(e.cfg.BaseDelay())
	e.rateLimiter.SetJitter(e.cfg.Jitter())
	e.rateLimiter.SetRandomSeed(e.cfg.RandomSeed())

	e.robot.Init(e.cfg.UserAgent())
	e.crawlFrontier.Init(e.cfg)
	e.htmlFetcher.Init(&http.Client{}, e.cfg.UserAgent())

	e.seedHost = ""
	if seeds := e.cfg.SeedURLs(); len(seeds) > 0 {
		e.seedHost = seeds[0].Host
	}
	e.gate = policy.NewGate(e.cfg, e.robot, e.seedHost)

	// Open Question resolution: a redirect hop is re-classified against
	// scope at every step, not just the original URL, so a chain that
	// wanders off-site aborts instead of silently following it.
	if concrete, ok := e.htmlFetcher.(*fetcher.HtmlFetcher); ok {
		scopeOpts := e.cfg.ScopeOptions()
		seedHost := e.seedHost
		concrete.SetScopeCheck(func(u url.URL) bool {
			return scopeOpts.IsInScope(scope.Classify(u, seedHost))
		})
	}

	if e.docsPipeline != nil {
		e.docsPipeline.SetExtractParam(extractor.ExtractParam{
			BodySpecificityBias:  e.cfg.BodySpecificityBias(),
			LinkDensityThreshold: e.cfg.LinkDensityThreshold(),
			ScoreMultiplier: extractor.ContentScoreMultiplier{
				NonWhitespaceDivisor: e.cfg.ScoreMultiplierNonWhitespaceDivisor(),
				Paragraphs:           e.cfg.ScoreMultiplierParagraphs(),
				Headings:             e.cfg.ScoreMultiplierHeadings(),
				CodeBlocks:           e.cfg.ScoreMultiplierCodeBlocks(),
				ListItems:            e.cfg.ScoreMultiplierListItems(),
			},
			Threshold: extractor.MeaningfulThreshold{
				MinNonWhitespace:    e.cfg.ThresholdMinNonWhitespace(),
				MinHeadings:         e.cfg.ThresholdMinHeadings(),
				MinParagraphsOrCode: e.cfg.ThresholdMinParagraphsOrCode(),
				MaxLinkDensity:      e.cfg.ThresholdMaxLinkDensity(),
			},
		})
	}
}
