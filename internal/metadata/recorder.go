package metadata

import (
	"sync"
	"time"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the single observability boundary every pipeline stage
// reports through. Recording MUST NOT influence scheduling, retries, or
// crawl termination.
type MetadataSink interface {
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute)
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)
}

// CrawlFinalizer records the terminal summary of a completed crawl. It is
// called exactly once, after termination, by whatever component owns the
// crawl lifecycle.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// NoopSink discards everything. Useful for callers (tests, dry runs) that
// need a MetadataSink/CrawlFinalizer but have nowhere to send the data.
type NoopSink struct{}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)              {}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute)                      {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)                      {}
func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration)                    {}

// Recorder is the in-memory MetadataSink/CrawlFinalizer used by a real crawl
// run. workerID tags every record so multi-worker runs can be told apart in
// a shared sink.
type Recorder struct {
	workerID string

	mu        sync.Mutex
	fetches   []FetchEvent
	artifacts []ArtifactRecord
	errors    []ErrorRecord
	stats     *crawlStats
}

func NewRecorder(workerID string) Recorder {
	return Recorder{workerID: workerID}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, FetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	})
}

// RecordAssetFetch shares the FetchEvent shape with RecordFetch but carries
// no content type or crawl depth: assets are fetched flat, not walked.
func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, FetchEvent{
		fetchUrl:   fetchUrl,
		httpStatus: httpStatus,
		duration:   duration,
		retryCount: retryCount,
	})
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, ArtifactRecord{kind: kind, paths: path})
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: details,
		observedAt:  observedAt,
		attrs:       attrs,
	})
}

// RecordFinalCrawlStats is called once, after crawl termination. It does not
// read back the fetch/artifact/error logs above: the caller already knows
// the authoritative totals and must not have them second-guessed here.
func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = &crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		durationMs:  duration.Milliseconds(),
	}
}

// ErrorCount returns the number of errors recorded so far. Exposed for
// reporting/tests; not used for control flow.
func (r *Recorder) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// FetchCount returns the number of fetch (page + asset) events recorded so far.
func (r *Recorder) FetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetches)
}

// ArtifactCount returns the number of artifacts of kind recorded so far.
func (r *Recorder) ArtifactCount(kind ArtifactKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.artifacts {
		if a.kind == kind {
			count++
		}
	}
	return count
}
