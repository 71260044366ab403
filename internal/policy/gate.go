// Package policy is the sole authority on whether a discovered URL may be
// admitted to the frontier.
package policy

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/scope"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// DecisionReason explains why the Gate admitted or rejected a candidate.
type DecisionReason string

const (
	ReasonAllowed          DecisionReason = "allowed"
	ReasonOutOfScope       DecisionReason = "out_of_scope"
	ReasonBlacklisted      DecisionReason = "blacklisted"
	ReasonNotWhitelisted   DecisionReason = "not_whitelisted"
	ReasonDepthExceeded    DecisionReason = "depth_exceeded"
	ReasonBudgetExhausted  DecisionReason = "budget_exhausted"
	ReasonRobotsDisallowed DecisionReason = "robots_disallowed"
)

// Decision is the Gate's verdict for one candidate URL.
type Decision struct {
	Allowed    bool
	Reason     DecisionReason
	CrawlDelay *time.Duration
}

// Gate evaluates every discovered URL in a fixed order before it may reach
// the frontier: scope (a host on the external allowlist passes this check
// whatever its scope), blacklist, whitelist, depth, per-path budget,
// robots.txt. It mirrors
// internal/scheduler.Scheduler.SubmitUrlForAdmission's choke-point shape
// (robots decision gating frontier submission), generalized into a pure
// decision function decoupled from the act of submitting.
type Gate struct {
	cfg      config.Config
	robot    robots.Robot
	seedHost string

	blacklist []*regexp.Regexp
	whitelist []*regexp.Regexp

	mu               sync.Mutex
	admittedByPrefix map[string]int
}

// NewGate constructs a Gate for a single crawl run rooted at seedHost.
func NewGate(cfg config.Config, robot robots.Robot, seedHost string) *Gate {
	return &Gate{
		cfg:              cfg,
		robot:            robot,
		seedHost:         seedHost,
		blacklist:        compileGlobs(cfg.BlacklistPatterns()),
		whitelist:        compileGlobs(cfg.WhitelistPatterns()),
		admittedByPrefix: make(map[string]int),
	}
}

// Admit decides whether candidate may be submitted to the frontier.
func (g *Gate) Admit(candidate frontier.CrawlAdmissionCandidate) (Decision, failure.ClassifiedError) {
	target := candidate.TargetURL()
	depth := candidate.DiscoveryMetadata().Depth()

	allowlisted := g.isExternallyAllowed(target)
	if s := scope.Classify(target, g.seedHost); !g.cfg.ScopeOptions().IsInScope(s) && !allowlisted {
		return Decision{Allowed: false, Reason: ReasonOutOfScope}, nil
	}

	full := target.String()

	if matchesAny(g.blacklist, full) {
		return Decision{Allowed: false, Reason: ReasonBlacklisted}, nil
	}

	if len(g.whitelist) > 0 && !matchesAny(g.whitelist, full) {
		return Decision{Allowed: false, Reason: ReasonNotWhitelisted}, nil
	}

	if maxDepth := g.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return Decision{Allowed: false, Reason: ReasonDepthExceeded}, nil
	}

	if !g.chargeBudget(target.Path) {
		return Decision{Allowed: false, Reason: ReasonBudgetExhausted}, nil
	}

	if g.robot == nil {
		return Decision{Allowed: true, Reason: ReasonAllowed}, nil
	}

	robotsDecision, robotsErr := g.robot.Decide(target)
	if robotsErr != nil {
		if g.cfg.RobotsFetchFailurePolicy() == config.RobotsFetchFailureDenyAll {
			return Decision{Allowed: false, Reason: ReasonRobotsDisallowed}, nil
		}
		// AllowAll: proceed as allowed, matching the teacher's own
		// fetcher.go "other 4xx -> empty allow-all response" behavior.
		return Decision{Allowed: true, Reason: ReasonAllowed}, nil
	}
	if !robotsDecision.Allowed {
		return Decision{Allowed: false, Reason: ReasonRobotsDisallowed}, nil
	}

	return Decision{Allowed: true, Reason: ReasonAllowed, CrawlDelay: robotsDecision.CrawlDelay}, nil
}

func (g *Gate) isExternallyAllowed(candidate url.URL) bool {
	_, ok := g.cfg.ExternalAllowlist()[candidate.Hostname()]
	return ok
}

// chargeBudget enforces the per-path-prefix page budget: the longest
// configured prefix matching urlPath caps how many URLs under it may ever be
// admitted, independent of the global MaxPages limit.
func (g *Gate) chargeBudget(urlPath string) bool {
	budgets := g.cfg.PathBudgets()
	if len(budgets) == 0 {
		return true
	}
	prefix := longestMatchingPrefix(budgets, urlPath)
	if prefix == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.admittedByPrefix[prefix] >= budgets[prefix] {
		return false
	}
	g.admittedByPrefix[prefix]++
	return true
}

func longestMatchingPrefix(budgets map[string]int, urlPath string) string {
	best := ""
	for prefix := range budgets {
		if strings.HasPrefix(urlPath, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	return best
}

func matchesAny(patterns []*regexp.Regexp, full string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(full) {
			return true
		}
	}
	return false
}

// compileGlobs converts shell-style "*"/"?" patterns into anchored regular
// expressions, the way deepnoodle-ai-wonton's MatchRule.Compile converts its
// MatchGlob rules: "*" must span across "/" (a blacklist entry like
// "*/admin/*" is meant to match anywhere in the URL), which rules out
// path.Match's directory-bounded "*".
func compileGlobs(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		escaped := regexp.QuoteMeta(pattern)
		escaped = strings.ReplaceAll(escaped, "\\*", ".*")
		escaped = strings.ReplaceAll(escaped, "\\?", ".")
		re, err := regexp.Compile("^" + escaped + "$")
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
