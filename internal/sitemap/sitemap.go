// Package sitemap resolves an XML sitemap or sitemap-index URL into the
// concrete page URLs it lists, for seeding a crawl without discovery.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	gpsitemap "github.com/oxffaa/gopher-parse-sitemap"
)

// Reader fetches and parses sitemap XML, following sitemap-index entries
// one level deep (an index pointing at further indexes is not recursed,
// matching the teacher's bounded-hop posture elsewhere in the pipeline).
type Reader struct {
	httpClient *http.Client
	userAgent  string
}

func NewReader(httpClient *http.Client, userAgent string) Reader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return Reader{httpClient: httpClient, userAgent: userAgent}
}

// ReadURLs returns every page URL listed by sitemapURL, resolving through
// one level of sitemap-index indirection.
func (r Reader) ReadURLs(ctx context.Context, sitemapURL url.URL) ([]url.URL, error) {
	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	if looksLikeIndex(body) {
		childLocs, err := r.parseIndex(body)
		if err != nil {
			return nil, err
		}

		var pages []url.URL
		for _, loc := range childLocs {
			childURL, err := url.Parse(loc)
			if err != nil {
				continue
			}
			childPages, err := r.fetchAndParseLeaf(ctx, *childURL)
			if err != nil {
				continue
			}
			pages = append(pages, childPages...)
		}
		return pages, nil
	}

	return parseLeaf(body)
}

func (r Reader) fetchAndParseLeaf(ctx context.Context, sitemapURL url.URL) ([]url.URL, error) {
	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	return parseLeaf(body)
}

func (r Reader) fetch(ctx context.Context, target url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap fetch %s: status %d", target.String(), resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func looksLikeIndex(body []byte) bool {
	return bytes.Contains(body, []byte("<sitemapindex"))
}

func parseLeaf(body []byte) ([]url.URL, error) {
	var pages []url.URL
	err := gpsitemap.ParseFromReader(bytes.NewReader(body), func(e gpsitemap.Entry) error {
		loc := e.GetLocation()
		if loc == "" {
			return nil
		}
		u, parseErr := url.Parse(loc)
		if parseErr != nil {
			return nil
		}
		pages = append(pages, *u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (r Reader) parseIndex(body []byte) ([]string, error) {
	var locs []string
	err := gpsitemap.ParseIndexFromReader(bytes.NewReader(body), func(e gpsitemap.IndexEntry) error {
		if loc := e.GetLocation(); loc != "" {
			locs = append(locs, loc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locs, nil
}
