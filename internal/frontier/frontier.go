package frontier

import (
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
*/

// CrawlFrontier is a BFS-by-depth admission queue: every CrawlToken at depth
// N is dequeued before any token at depth N+1 becomes eligible, regardless of
// submission order. Depth levels may contain gaps (e.g. depth 0 then depth 2
// submitted directly); Dequeue skips them without touching a nil queue.
//
// Zero-value MaxDepth/MaxPages in the supplied config.Config mean unlimited.
type CrawlFrontier struct {
	mu sync.Mutex

	cfg   config.Config
	ready bool

	queues map[int]*FIFOQueue[CrawlToken]
	seen   *Interner
}

// NewCrawlFrontier constructs an uninitialized frontier. Call Init before use.
func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{}
}

// Init (re)configures the frontier for a crawl run. It is separate from
// NewCrawlFrontier so callers can construct the zero value early and wire
// configuration in once it is available.
func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cfg = cfg
	f.ready = true
	f.queues = make(map[int]*FIFOQueue[CrawlToken])
	f.seen = NewInterner()
}

// Submit admits candidate into its depth's sub-queue, subject to MaxDepth,
// MaxPages (a cap on total unique URLs ever admitted, not on how many have
// been dequeued), and deduplication against every URL submitted so far,
// regardless of source.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ready {
		return
	}

	depth := candidate.DiscoveryMetadata().Depth()
	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}

	target := candidate.TargetURL()
	key := urlutil.Canonicalize(target).String()
	if f.seen.Contains(key) {
		return
	}
	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.seen.Len() >= maxPages {
		return
	}
	if _, inserted := f.seen.Insert(key); !inserted {
		return
	}

	queue, ok := f.queues[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queues[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(target, depth))
}

// Dequeue pops the next token from the lowest non-exhausted depth. It
// returns (_, false) when the frontier holds no admissible work.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := f.currentMinDepthLocked()
	if depth < 0 {
		return CrawlToken{}, false
	}

	token, ok := f.queues[depth].Dequeue()
	if !ok {
		return CrawlToken{}, false
	}
	return token, true
}

// IsDepthExhausted reports whether depth has no admissible, un-dequeued
// tokens left: a depth that never received a submission counts as exhausted,
// as does a negative depth, which can never exist.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isDepthExhaustedLocked(depth)
}

func (f *CrawlFrontier) isDepthExhaustedLocked(depth int) bool {
	if depth < 0 {
		return true
	}
	queue, ok := f.queues[depth]
	if !ok || queue == nil {
		return true
	}
	return queue.Size() == 0
}

// CurrentMinDepth returns the smallest depth that still has pending tokens,
// skipping exhausted and never-populated depths, or -1 when the frontier is
// empty. It is consistent with IsDepthExhausted: every depth below the
// result is exhausted, and the result itself is not.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentMinDepthLocked()
}

func (f *CrawlFrontier) currentMinDepthLocked() int {
	min := -1
	for depth, queue := range f.queues {
		if queue == nil || queue.Size() == 0 {
			continue
		}
		if min == -1 || depth < min {
			min = depth
		}
	}
	return min
}

// VisitedCount reports the number of unique URLs admitted into the frontier
// so far. The visited set is append-only: it never shrinks on Dequeue.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Len()
}
