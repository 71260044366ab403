// Package scope classifies a discovered URL relative to a crawl's seed host.
package scope

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope is the classification of a URL relative to the seed.
type Scope int

const (
	Internal Scope = iota
	Subdomain
	TldPeer
	External
)

func (s Scope) String() string {
	switch s {
	case Internal:
		return "internal"
	case Subdomain:
		return "subdomain"
	case TldPeer:
		return "tld_peer"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// Options toggles which non-Internal scopes the caller is willing to accept
// as in-scope when expanding the frontier; Classify itself always reports
// the precise scope regardless of these flags.
type Options struct {
	AllowSubdomains bool
	AllowTld        bool
}

// Classify determines candidate's scope relative to seedHost.
//
// Tie-break order: exact host match => Internal; candidate host ending in
// "."+seedHost => Subdomain; same label before the public suffix but a
// different registrable domain (example.com vs example.co.uk) => TldPeer;
// otherwise External.
func Classify(candidate url.URL, seedHost string) Scope {
	candidateHost := strings.ToLower(candidate.Hostname())
	seedHost = strings.ToLower(seedHost)

	if candidateHost == seedHost {
		return Internal
	}

	if strings.HasSuffix(candidateHost, "."+seedHost) {
		return Subdomain
	}

	seedRegistrable, seedErr := publicsuffix.EffectiveTLDPlusOne(seedHost)
	candidateRegistrable, candidateErr := publicsuffix.EffectiveTLDPlusOne(candidateHost)
	if seedErr == nil && candidateErr == nil {
		seedLabel := strings.TrimSuffix(seedRegistrable, "."+publicSuffix(seedRegistrable))
		candidateLabel := strings.TrimSuffix(candidateRegistrable, "."+publicSuffix(candidateRegistrable))
		if seedLabel == candidateLabel && seedRegistrable != candidateRegistrable {
			return TldPeer
		}
	}

	return External
}

// IsInScope reports whether scope s should be traversed given opts.
func (o Options) IsInScope(s Scope) bool {
	switch s {
	case Internal:
		return true
	case Subdomain:
		return o.AllowSubdomains
	case TldPeer:
		return o.AllowTld
	default:
		return false
	}
}

func publicSuffix(registrable string) string {
	suffix, _ := publicsuffix.PublicSuffix(registrable)
	return suffix
}
