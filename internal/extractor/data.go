package extractor

import (
	"net/url"

	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ContentScoreMultiplier weighs the structural signals used when scoring
// a candidate container during heuristic fallback extraction.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a candidate container carries enough
// signal to be treated as the page's main content.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam carries the scoring knobs a Scheduler derives from config.Config
// and pushes into an Extractor before a crawl starts.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// Extractor isolates the main documentation content out of a fetched page.
// Implementations must be safe to reuse across the lifetime of a single crawl
// but are not required to be safe for concurrent use.
type Extractor interface {
	SetExtractParam(params ExtractParam)
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
}
