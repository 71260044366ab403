package urlutil

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NormalizedURL is the result of resolving a candidate reference against a
// base URL. Display retains the original query string verbatim; DedupKey
// strips query and fragment and lowercases scheme/host, matching the
// case-insensitive equality key used by the visited set.
type NormalizedURL struct {
	display url.URL
}

// Normalize resolves candidate against base (which may be the zero url.URL
// when candidate is already absolute), decodes unreserved percent-escapes,
// lowercases the host, strips the default port and any fragment, and
// preserves the query string verbatim on the returned URL.
func Normalize(base url.URL, candidate string) (NormalizedURL, error) {
	ref, err := url.Parse(candidate)
	if err != nil {
		return NormalizedURL{}, fmt.Errorf("malformed url %q: %w", candidate, err)
	}

	resolved := ref
	if !ref.IsAbs() {
		if base.Host == "" {
			return NormalizedURL{}, fmt.Errorf("malformed url %q: relative reference without a base", candidate)
		}
		resolved = base.ResolveReference(ref)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return NormalizedURL{}, fmt.Errorf("malformed url %q: unsupported scheme %q", candidate, resolved.Scheme)
	}

	out := *resolved
	out.Scheme = lowerASCII(out.Scheme)
	out.Host = lowerASCII(out.Host)
	out.Fragment = ""
	out.RawFragment = ""

	if host, port := out.Hostname(), out.Port(); port != "" {
		if (out.Scheme == "http" && port == "80") || (out.Scheme == "https" && port == "443") {
			out.Host = host
		}
	}

	escaped := decodeUnreservedEscapes(out.EscapedPath())
	out.RawPath = ""
	if escaped != out.EscapedPath() {
		out.RawPath = escaped
	}

	return NormalizedURL{display: out}, nil
}

// Display returns the URL as it should be fetched and shown: query string
// preserved verbatim, fragment and default port stripped.
func (n NormalizedURL) Display() url.URL {
	return n.display
}

// DedupKey returns the case-insensitive equality key used by the visited
// set: the display URL with its query string additionally stripped, and the
// trailing slash normalized the same way Canonicalize does.
func (n NormalizedURL) DedupKey() string {
	key := n.display
	key.RawQuery = ""
	key.ForceQuery = false
	if len(key.Path) > 1 {
		key.Path = stripTrailingSlash(key.Path)
	}
	return key.String()
}

// Authority returns the host[:port] portion used for politeness and robots
// scoping.
func (n NormalizedURL) Authority() string {
	return n.display.Host
}

func decodeUnreservedEscapes(path string) string {
	if !strings.ContainsRune(path, '%') {
		return path
	}

	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '%' && i+2 < len(path) {
			if v, err := strconv.ParseUint(path[i+1:i+3], 16, 8); err == nil && isUnreserved(byte(v)) {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~':
		return true
	default:
		return false
	}
}
