package content

import (
	"net/url"
	"regexp"
	"strings"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

var (
	datedPathExpr = regexp.MustCompile(`/(19|20)\d{2}/(0?[1-9]|1[0-2])(/|$)`)
	isoDateExpr   = regexp.MustCompile(`(^|/|-)(19|20)\d{2}-\d{2}-\d{2}`)
)

var homepageSegments = map[string]struct{}{
	"index.html": {},
	"index.htm":  {},
	"index.php":  {},
	"home":       {},
}

// Validator decides whether a final URL is genuine article content. It holds
// only read-only data and is safe for concurrent use.
type Validator struct {
	sponsors   domainSet
	appStores  domainSet
	allow      domainSet
	account    map[string]struct{}
	indicators []string
	hosts      *Registry
}

var _ ports.LinkValidator = (*Validator)(nil)

// NewValidator compiles rules into a validator. A nil registry uses the
// built-in host rules.
func NewValidator(rules Rules, hosts *Registry) *Validator {
	if hosts == nil {
		hosts = DefaultRegistry()
	}

	account := make(map[string]struct{}, len(rules.AccountKeywords))
	for _, kw := range rules.AccountKeywords {
		account[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}

	indicators := make([]string, 0, len(rules.ContentIndicators))
	for _, ind := range rules.ContentIndicators {
		if ind = strings.ToLower(strings.TrimSpace(ind)); ind != "" {
			indicators = append(indicators, ind)
		}
	}

	return &Validator{
		sponsors:   compileDomains(rules.SponsorDomains),
		appStores:  compileDomains(rules.AppStoreDomains),
		allow:      compileDomains(rules.AllowDomains),
		account:    account,
		indicators: indicators,
		hosts:      hosts,
	}
}

// Validate runs the ordered rule chain; the first matching rule decides.
func (v *Validator) Validate(finalURL string) domain.Verdict {
	u, err := url.Parse(strings.TrimSpace(finalURL))
	if err != nil || u.Hostname() == "" {
		return domain.Reject(domain.ReasonInvalidURL)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return domain.Reject(domain.ReasonInvalidURL)
	}

	host := normalizeHost(u.Hostname())
	lowerPath := strings.ToLower(u.EscapedPath())
	segments := splitSegments(lowerPath)

	if isHomepage(segments) {
		return domain.Reject(domain.ReasonHomepage)
	}
	if v.sponsors.match(host, lowerPath) {
		return domain.Reject(domain.ReasonSponsor)
	}
	if v.appStores.match(host, lowerPath) {
		return domain.Reject(domain.ReasonAppStore)
	}

	rule, hasRule := v.hosts.Resolve(host)
	if hasRule && rule.Profile != nil && rule.Profile(segments) {
		return domain.Reject(domain.ReasonProfile)
	}
	if v.hasAccountSegment(segments) {
		return domain.Reject(domain.ReasonAccountPath)
	}
	if hasRule && rule.Require != nil && !rule.Require(segments) {
		return domain.Reject(domain.ReasonDomainRule)
	}

	if v.allow.match(host, lowerPath) || v.hasContentIndicator(u, lowerPath, segments) {
		return domain.Accept()
	}
	return domain.Reject(domain.ReasonNoSignal)
}

func (v *Validator) hasAccountSegment(segments []string) bool {
	for _, seg := range segments {
		name := seg
		if i := strings.IndexByte(name, '.'); i > 0 {
			name = name[:i]
		}
		if _, ok := v.account[name]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) hasContentIndicator(u *url.URL, lowerPath string, segments []string) bool {
	for _, ind := range v.indicators {
		if i := strings.Index(lowerPath, ind); i >= 0 && len(lowerPath) > i+len(ind) {
			return true
		}
	}
	if datedPathExpr.MatchString(lowerPath) || isoDateExpr.MatchString(lowerPath) {
		return true
	}
	if len(segments) > 0 && segments[0] == "watch" && u.Query().Get("v") != "" {
		return true
	}
	for _, seg := range segments {
		if isNumericID(seg) {
			return true
		}
	}
	return false
}

func isHomepage(segments []string) bool {
	if len(segments) == 0 {
		return true
	}
	if len(segments) == 1 {
		_, ok := homepageSegments[segments[0]]
		return ok
	}
	return false
}

func splitSegments(lowerPath string) []string {
	parts := strings.Split(lowerPath, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
