package scheduler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// createSchedulerForTest creates a scheduler with test-specific initialization
// that allows testing the scheduler in isolation. Every call site passes the
// same fourteen dependencies in the same order; pass nil for whichever stage
// a given test doesn't exercise and a real, metadataSink-bound instance is
// built in its place so the rest of the pipeline still runs end to end.
func createSchedulerForTest(
	t *testing.T,
	ctx context.Context,
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	rateLimiter limiter.RateLimiter,
	crawlFrontier scheduler.Frontier,
	robot robots.Robot,
	htmlFetcher fetcher.Fetcher,
	domExtractor extractor.Extractor,
	htmlSanitizer sanitizer.Sanitizer,
	rule mdconvert.ConvertRule,
	resolver assets.Resolver,
	markdownConstraint normalize.MarkdownConstraint,
	storageSink storage.Sink,
	sleeper timeutil.Sleeper,
) *scheduler.Scheduler {
	t.Helper()

	if robot == nil {
		r := robots.NewCachedRobot(metadataSink)
		r.Init("testAgent")
		robot = &r
	}
	if domExtractor == nil {
		e := extractor.NewDomExtractor(metadataSink)
		domExtractor = &e
	}
	if htmlSanitizer == nil {
		s := sanitizer.NewHTMLSanitizer(metadataSink)
		htmlSanitizer = &s
	}
	if rule == nil {
		rule = mdconvert.NewRule(metadataSink)
	}
	if resolver == nil {
		r := assets.NewLocalResolver(metadataSink, &http.Client{}, "test-agent")
		resolver = &r
	}
	if sleeper == nil {
		sleeper = timeutil.NewRealSleeper()
	}

	s := scheduler.NewSchedulerWithDeps(
		ctx,
		crawlFinalizer,
		metadataSink,
		rateLimiter,
		crawlFrontier,
		htmlFetcher,
		robot,
		domExtractor,
		htmlSanitizer,
		rule,
		resolver,
		markdownConstraint,
		storageSink,
		sleeper,
	)
	return &s
}

// setupTestServer creates a test HTTP server that serves robots.txt content
func setupTestServer(t *testing.T, robotsContent string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(robotsContent))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// setupTestServerWithStatus creates a test HTTP server that returns a specific status code
func setupTestServerWithStatus(t *testing.T, statusCode int, robotsContent string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(statusCode)
			if robotsContent != "" {
				w.Write([]byte(robotsContent))
			}
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// errorRecordingSink lives in helper_metadata_test.go. fetcherMock,
// newFetcherMockForTest, and the setupFetcherMockWith* helpers live in
// helper_fetcher_test.go. mockClassifiedError lives in helper_error_test.go.
