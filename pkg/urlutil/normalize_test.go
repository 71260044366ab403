package urlutil

import (
	"net/url"
	"testing"
)

func TestNormalize_ResolvesRelativeAgainstBase(t *testing.T) {
	base, _ := url.Parse("https://a.test/docs/guide")
	n, err := Normalize(*base, "../other?tab=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	display := n.Display()
	if got := display.String(); got != "https://a.test/other?tab=1" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_PreservesQueryOnDisplay(t *testing.T) {
	n, err := Normalize(url.URL{}, "https://a.test/x?utm_source=y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	display := n.Display()
	if got := display.String(); got != "https://a.test/x?utm_source=y" {
		t.Errorf("display should keep query verbatim, got %q", got)
	}
}

func TestNormalize_DedupKeyStripsQueryAndCase(t *testing.T) {
	a, err := Normalize(url.URL{}, "https://A.test/x?utm=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Normalize(url.URL{}, "https://a.test/x?utm=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DedupKey() != b.DedupKey() {
		t.Errorf("expected equal dedup keys, got %q vs %q", a.DedupKey(), b.DedupKey())
	}
}

func TestNormalize_RejectsUnsupportedScheme(t *testing.T) {
	if _, err := Normalize(url.URL{}, "ftp://a.test/x"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestNormalize_RejectsMalformed(t *testing.T) {
	if _, err := Normalize(url.URL{}, "http://%zz"); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestNormalize_RelativeWithoutBaseFails(t *testing.T) {
	if _, err := Normalize(url.URL{}, "/just/a/path"); err == nil {
		t.Error("expected error for relative reference without base")
	}
}

func TestNormalize_StripsDefaultPortAndFragment(t *testing.T) {
	n, err := Normalize(url.URL{}, "HTTPS://A.test:443/x#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	display := n.Display()
	if got := display.String(); got != "https://a.test/x" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_AuthorityIsHostPort(t *testing.T) {
	n, err := Normalize(url.URL{}, "https://a.test:8080/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := n.Authority(); got != "a.test:8080" {
		t.Errorf("got %q", got)
	}
}
