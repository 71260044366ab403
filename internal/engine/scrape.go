package engine

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// Scrape fetches a single URL outside the frontier/scheduler loop: no
// admission check, no discovered-link follow-up, no event bus publish. It
// exists for callers that want one page's content without running a crawl.
func (e *Engine) Scrape(ctx context.Context, target url.URL) (Page, failure.ClassifiedError) {
	e.mu.Lock()
	alreadyInit := e.state != StateNew
	e.mu.Unlock()

	if !alreadyInit {
		e.htmlFetcher.Init(&http.Client{}, e.cfg.UserAgent())
	}

	result, err := e.htmlFetcher.Fetch(ctx, 0, target, retryParam(e.cfg))
	if err != nil {
		return Page{}, err
	}

	return Page{
		URL:           result.URL(),
		Body:          result.Body(),
		StatusCode:    result.Code(),
		Depth:         0,
		FetchedAt:     result.FetchedAt(),
		RedirectChain: result.RedirectChain(),
	}, nil
}
