package urlutil

import (
	"fmt"
	"strconv"
	"strings"
)

// placeholder is one `{a,b,c}` alternation or `[m-n(:step)]` numeric range
// found in a glob pattern, recorded by its byte offsets in the original
// string and its expansion values in stable order.
type placeholder struct {
	start, end int
	values     []string
}

// ExpandGlob expands `{a,b,c}` alternatives and `[m-n(:step)]` numeric ranges
// in pattern via a cartesian product over independent placeholders. Ordering
// within expansion is stable: list order for braces, ascending numeric order
// for ranges, outermost placeholder varies slowest. A pattern with no
// placeholder returns the singleton list [pattern].
func ExpandGlob(pattern string) ([]string, error) {
	placeholders, err := findPlaceholders(pattern)
	if err != nil {
		return nil, err
	}
	if len(placeholders) == 0 {
		return []string{pattern}, nil
	}

	results := []string{""}
	cursor := 0
	for _, ph := range placeholders {
		prefix := pattern[cursor:ph.start]
		next := make([]string, 0, len(results)*len(ph.values))
		for _, r := range results {
			for _, v := range ph.values {
				next = append(next, r+prefix+v)
			}
		}
		results = next
		cursor = ph.end
	}
	suffix := pattern[cursor:]
	for i := range results {
		results[i] += suffix
	}

	return results, nil
}

func findPlaceholders(pattern string) ([]placeholder, error) {
	var out []placeholder
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated '{' in glob pattern %q", pattern)
			}
			end += i
			values := strings.Split(pattern[i+1:end], ",")
			out = append(out, placeholder{start: i, end: end + 1, values: values})
			i = end
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated '[' in glob pattern %q", pattern)
			}
			end += i
			values, err := expandNumericRange(pattern[i+1 : end])
			if err != nil {
				return nil, fmt.Errorf("invalid range in glob pattern %q: %w", pattern, err)
			}
			out = append(out, placeholder{start: i, end: end + 1, values: values})
			i = end
		}
	}
	return out, nil
}

// expandNumericRange parses "m-n" or "m-n:step" and returns the ascending
// string sequence from m to n inclusive, stepping by step (default 1).
func expandNumericRange(body string) ([]string, error) {
	step := 1
	rangePart := body
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		rangePart = body[:idx]
		s, err := strconv.Atoi(body[idx+1:])
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step %q", body[idx+1:])
		}
		step = s
	}

	parts := strings.SplitN(rangePart, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected m-n, got %q", rangePart)
	}
	lo, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", parts[0])
	}
	hi, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q", parts[1])
	}
	if lo > hi {
		return nil, fmt.Errorf("range start %d greater than end %d", lo, hi)
	}

	var out []string
	for v := lo; v <= hi; v += step {
		out = append(out, strconv.Itoa(v))
	}
	return out, nil
}
