package robots

import (
	"context"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the admission-time robots.txt authority the scheduler consults
// before a URL may reach the frontier.
type Robot interface {
	// Init prepares the robot for a crawl under the given user agent, using
	// a private in-memory cache.
	Init(userAgent string)

	// InitWithCache is Init with an explicit, possibly shared, Cache.
	InitWithCache(userAgent string, c cache.Cache)

	// Decide evaluates u against the robots.txt rules for its host. A
	// non-nil error means the robots.txt infrastructure itself failed
	// (network, parse); it is distinct from an ordinary disallow decision.
	Decide(u url.URL) (Decision, failure.ClassifiedError)
}

// CachedRobot fetches and caches robots.txt per host, coalescing concurrent
// fetches for the same host through a single in-flight request, and matches
// paths against the active group via temoto/robotstxt rather than the
// hand-rolled prefix matching in mapper.go, which cannot express "$"
// end-anchors or "*" wildcards found in real robots.txt files.
type CachedRobot struct {
	userAgent    string
	fetcher      *RobotsFetcher
	group        *singleflight.Group
	metadataSink metadata.MetadataSink
}

// NewCachedRobot constructs a CachedRobot bound to metadataSink for error
// reporting. Call Init or InitWithCache before Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: metadataSink}
}

// Init prepares r for a crawl run using a private in-memory Cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares r for a crawl run using the supplied Cache.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
	r.group = &singleflight.Group{}
}

// Decide fetches (or reuses the cached) robots.txt for u's host and reports
// whether u may be crawled.
func (r *CachedRobot) Decide(u url.URL) (Decision, failure.ClassifiedError) {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	shared, err, _ := r.group.Do(scheme+"://"+u.Host, func() (any, error) {
		result, fetchErr := r.fetcher.Fetch(context.Background(), scheme, u.Host)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return result, nil
	})
	if err != nil {
		robotsErr, ok := err.(*RobotsError)
		if !ok {
			robotsErr = &RobotsError{Message: err.Error(), Retryable: true, Cause: ErrCauseHttpFetchFailure}
		}
		r.recordError("Decide", u, robotsErr)
		return Decision{}, robotsErr
	}

	result := shared.(RobotsFetchResult)

	if result.RawBody == "" {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}, nil
	}

	data, parseErr := robotstxt.FromBytes([]byte(result.RawBody))
	if parseErr != nil {
		robotsErr := &RobotsError{
			Message:   parseErr.Error(),
			Retryable: false,
			Cause:     ErrCauseParseError,
		}
		r.recordError("Decide", u, robotsErr)
		return Decision{}, robotsErr
	}

	group := data.FindGroup(r.userAgent)
	if group == nil {
		return Decision{Url: u, Allowed: true, Reason: NoMatchingRules}, nil
	}

	allowed := group.Test(u.Path)
	reason := AllowedByRobots
	if !allowed {
		reason = DisallowedByRobots
	}

	var crawlDelay *time.Duration
	if group.CrawlDelay > 0 {
		delay := group.CrawlDelay
		crawlDelay = &delay
	}

	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: crawlDelay,
	}, nil
}

func (r *CachedRobot) recordError(action string, u url.URL, err *RobotsError) {
	if r.metadataSink == nil {
		return
	}
	r.metadataSink.RecordError(
		time.Now(),
		"robots",
		action,
		mapRobotsErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, u.String()),
		},
	)
}
