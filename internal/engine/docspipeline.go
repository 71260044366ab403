package engine

import (
	"context"
	"net/http"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/build"
	"github.com/rohmanhakim/docs-crawler/internal/eventbus"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
)

// defaultMaxAssetSize bounds a single downloaded asset when no explicit
// limit is configured.
const defaultMaxAssetSize = 10 << 20 // 10 MiB

// DocsPipeline is the HTML-to-Markdown transformation collaborator the
// Non-goals place outside core crawl-loop scope: it is not part of Crawl
// itself, but a SubscribeGuard consumer driven entirely off the event bus,
// so Crawl does not return until every fetched page it received has been
// through sanitize -> convert -> resolve assets -> normalize -> write.
type DocsPipeline struct {
	domExtractor       extractor.DomExtractor
	htmlSanitizer      sanitizer.Sanitizer
	conversionRule     mdconvert.ConvertRule
	assetResolver      assets.Resolver
	markdownConstraint normalize.Constraint

	outputDir           string
	maxAssetSize        int64
	hashAlgo            hashutil.HashAlgo
	allowedPathPrefixes []string
	retryParam          retry.RetryParam

	sink storage.Sink
}

// NewDocsPipeline builds the default docs pipeline, wiring the
// sanitizer/mdconvert/assets/normalize/storage packages behind one
// interface the engine can drive from event bus Page notifications.
func NewDocsPipeline(
	metadataSink metadata.MetadataSink,
	outputDir string,
	allowedPathPrefixes []string,
	retryParam retry.RetryParam,
) *DocsPipeline {
	sanitizerImpl := sanitizer.NewHTMLSanitizer(metadataSink)
	conversionRule := mdconvert.NewRule(metadataSink)
	resolver := assets.NewLocalResolver(metadataSink, &http.Client{}, "docs-crawler/1.0")
	constraint := normalize.NewMarkdownConstraint(metadataSink)
	domExtractor := extractor.NewDomExtractor(metadataSink, extractor.ExtractParam{})
	sink := storage.NewLocalSink(metadataSink)

	return &DocsPipeline{
		domExtractor:        domExtractor,
		htmlSanitizer:       &sanitizerImpl,
		conversionRule:      conversionRule,
		assetResolver:       &resolver,
		markdownConstraint:  &constraint,
		outputDir:           outputDir,
		maxAssetSize:        defaultMaxAssetSize,
		hashAlgo:            hashutil.HashAlgoBLAKE3,
		allowedPathPrefixes: allowedPathPrefixes,
		retryParam:          retryParam,
		sink:                &sink,
	}
}

// SetExtractParam forwards scoring knobs to the embedded DomExtractor,
// mirroring internal/scheduler's wiring of config-derived extraction
// parameters.
func (p *DocsPipeline) SetExtractParam(params extractor.ExtractParam) {
	p.domExtractor.SetExtractParam(params)
}

// Run drains sub until its channel closes (the caller unsubscribing it),
// processing every Page event and calling bus.Done once per event whether
// or not it was a Page the pipeline acts on — every delivery to a guard
// subscription must be matched by exactly one Done call. Callers run this
// in its own goroutine for the duration of one Crawl/CrawlSitemap call.
func (p *DocsPipeline) Run(ctx context.Context, bus *eventbus.Bus, sub *eventbus.Subscription) {
	for evt := range sub.C() {
		if page, ok := evt.Payload.(Page); ok {
			p.process(ctx, page)
		}
		bus.Done()
	}
}

func (p *DocsPipeline) process(ctx context.Context, page Page) failure.ClassifiedError {
	extraction, err := p.domExtractor.Extract(page.URL, page.Body)
	if err != nil {
		return err
	}

	sanitized, err := p.htmlSanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		return err
	}

	converted, err := p.conversionRule.Convert(sanitized)
	if err != nil {
		return err
	}

	resolveParam := assets.NewResolveParam(p.outputDir, p.maxAssetSize)
	assetful, err := p.assetResolver.Resolve(ctx, page.URL, converted, resolveParam, p.retryParam)
	if err != nil {
		return err
	}

	normalizeParam := normalize.NewNormalizeParam(
		build.Version,
		page.FetchedAt,
		p.hashAlgo,
		page.Depth,
		p.allowedPathPrefixes,
	)
	normalized, err := p.markdownConstraint.Normalize(page.URL, assetful, normalizeParam)
	if err != nil {
		return err
	}

	_, err = p.sink.Write(p.outputDir, normalized, p.hashAlgo)
	return err
}
