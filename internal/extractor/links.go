package extractor

import (
	"bytes"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Responsibilities
- Parse HTML and select every anchor carrying an href
- Resolve each href against the page's base URL (post-redirect)
- Hand back resolved, deduplicated URLs for frontier admission

The link extractor does not decide whether a discovered URL may be
crawled; that is the policy gate's job. It only resolves and dedupes.
*/

type LinkExtractionError struct {
	Message   string
	Retryable bool
}

func (e *LinkExtractionError) Error() string {
	return e.Message
}

func (e *LinkExtractionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// LinkExtractor finds outbound links in a fetched page for frontier
// admission. It is distinct from Extractor, which isolates the main
// documentation content: a body that fails Extractor's meaningful-content
// test (a listing page, a redirect stub) can still yield links here.
type LinkExtractor struct {
	metadataSink metadata.MetadataSink
}

func NewLinkExtractor(metadataSink metadata.MetadataSink) LinkExtractor {
	return LinkExtractor{metadataSink: metadataSink}
}

// ExtractLinks returns every href found on the page, resolved against
// baseURL (the URL the body was ultimately fetched from, i.e. the last hop
// of any redirect chain). Non-HTML bodies and bodies with no anchors simply
// yield an empty slice, never an error: the content-type gate the teacher
// enforced at fetch time has moved here, where "no links found" is the
// correct non-HTML outcome rather than a fetch failure.
func (l *LinkExtractor) ExtractLinks(baseURL url.URL, body []byte) ([]url.URL, failure.ClassifiedError) {
	decoded := decodeBestEffortUTF8(body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		l.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"LinkExtractor.ExtractLinks",
			metadata.CauseContentInvalid,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, baseURL.String()),
			},
		)
		return nil, &LinkExtractionError{Message: err.Error(), Retryable: false}
	}

	seen := make(map[string]struct{})
	var links []url.URL

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		normalized, normErr := urlutil.Normalize(baseURL, href)
		if normErr != nil {
			return
		}
		key := normalized.DedupKey()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, normalized.Display())
	})

	return links, nil
}

// decodeBestEffortUTF8 returns body unchanged if it is already valid UTF-8.
// Otherwise it strips invalid byte sequences rather than failing outright:
// a mis-declared charset shouldn't cost the page its discovered links.
func decodeBestEffortUTF8(body []byte) []byte {
	if utf8.Valid(body) {
		return body
	}
	var buf bytes.Buffer
	buf.Grow(len(body))
	for i := 0; i < len(body); {
		r, size := utf8.DecodeRune(body[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		buf.Write(body[i : i+size])
		i += size
	}
	return buf.Bytes()
}
