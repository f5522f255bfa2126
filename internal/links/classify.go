package links

import (
	"net/url"
	"path"
	"strings"

	"NewsletterScanner/internal/domain"
)

var junkKeywords = []string{
	"unsubscribe",
	"preferences",
	"settings",
	"privacy-policy",
	"privacy_policy",
	"manage-subscription",
	"manage_subscription",
	"opt-out",
	"optout",
}

var junkSchemes = map[string]struct{}{
	"mailto": {},
	"tel":    {},
	"sms":    {},
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".svg":  {},
	".ico":  {},
	".bmp":  {},
}

var cdnFragments = []string{
	"/cdn-cgi/",
	"email-protection",
	"favicon",
}

// First host label used by ESP click-tracking subdomains.
var trackingSubdomains = map[string]struct{}{
	"click":    {},
	"clicks":   {},
	"link":     {},
	"links":    {},
	"email":    {},
	"e":        {},
	"t":        {},
	"track":    {},
	"tracking": {},
	"go":       {},
	"r":        {},
	"url":      {},
	"trk":      {},
}

var trackingHosts = []string{
	"list-manage.com",
	"sendgrid.net",
	"mandrillapp.com",
	"awstrack.me",
	"mailchi.mp",
	"hubspotlinks.com",
	"hs-sites.com",
	"mlsend.com",
	"rs6.net",
	"ck.page",
	"convertkit-mail.com",
	"convertkit-mail2.com",
	"mail.beehiiv.com",
	"link.mail.beehiiv.com",
	"substack.com/redirect",
	"t.co",
	"bit.ly",
	"buff.ly",
	"ow.ly",
	"lnkd.in",
	"tinyurl.com",
}

var trackingPathFragments = []string{
	"/click",
	"/redirect",
	"/track",
	"/ls/click",
	"/cl0/",
	"/cl2/",
	"/ss/c/",
}

var redirectParams = []string{"url", "redirect", "redirect_url", "redirect_uri", "u", "target", "dest"}

// Classify assigns exactly one kind to a decoded link. Junk rules run first so
// no tracking wrapper around an unsubscribe link ever reaches the network.
func Classify(decoded string) domain.LinkKind {
	u, err := url.Parse(decoded)
	if err != nil || IsJunkURL(u) {
		return domain.KindJunk
	}
	if isTracking(u) {
		return domain.KindTracking
	}
	return domain.KindDirect
}

// IsJunk reports whether a decoded link is structurally useless.
func IsJunk(decoded string) bool {
	u, err := url.Parse(decoded)
	if err != nil {
		return true
	}
	return IsJunkURL(u)
}

// isJunkWord matches a keyword against one path segment or query token,
// either whole or as a leading or trailing hyphenated part.
func isJunkWord(word string) bool {
	if i := strings.IndexByte(word, '.'); i > 0 {
		word = word[:i]
	}
	for _, kw := range junkKeywords {
		if word == kw {
			return true
		}
		for _, sep := range []string{"-", "_"} {
			if strings.HasPrefix(word, kw+sep) || strings.HasSuffix(word, sep+kw) {
				return true
			}
		}
	}
	return false
}

func hasJunkSegment(lowerPath string) bool {
	for _, seg := range strings.Split(lowerPath, "/") {
		if seg != "" && isJunkWord(seg) {
			return true
		}
	}
	return false
}

func hasJunkQuery(query url.Values) bool {
	for key, values := range query {
		if isJunkWord(strings.ToLower(key)) {
			return true
		}
		for _, v := range values {
			if isJunkWord(strings.ToLower(v)) {
				return true
			}
		}
	}
	return false
}

// IsJunkURL applies the junk rules to a parsed URL.
func IsJunkURL(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	if _, ok := junkSchemes[scheme]; ok {
		return true
	}
	if scheme != "http" && scheme != "https" {
		return true
	}
	if u.Hostname() == "" {
		return true
	}

	lowerPath := strings.ToLower(u.EscapedPath())
	rest := lowerPath + "?" + strings.ToLower(u.RawQuery)
	if hasJunkSegment(lowerPath) || hasJunkQuery(u.Query()) {
		return true
	}
	for _, frag := range cdnFragments {
		if strings.Contains(rest, frag) {
			return true
		}
	}
	if _, ok := imageExtensions[path.Ext(lowerPath)]; ok {
		return true
	}
	return false
}

// Filter drops junk links, preserving order.
func Filter(decoded []string) []string {
	out := make([]string, 0, len(decoded))
	for _, link := range decoded {
		if !IsJunk(link) {
			out = append(out, link)
		}
	}
	return out
}

func isTracking(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	lowerPath := strings.ToLower(u.EscapedPath())

	if labels := strings.Split(host, "."); len(labels) >= 3 {
		if _, ok := trackingSubdomains[labels[0]]; ok {
			return true
		}
	}

	for _, entry := range trackingHosts {
		entryHost, entryPath, _ := strings.Cut(entry, "/")
		if !hostMatches(host, entryHost) {
			continue
		}
		if entryPath == "" || strings.HasPrefix(strings.TrimPrefix(lowerPath, "/"), entryPath) {
			return true
		}
	}

	for _, frag := range trackingPathFragments {
		if strings.Contains(lowerPath, frag) {
			return true
		}
	}

	query := u.Query()
	for _, key := range redirectParams {
		v := strings.ToLower(query.Get(key))
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return true
		}
	}
	return false
}

func hostMatches(host, domainName string) bool {
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}

// Prioritize discards junk and returns Direct links followed by Tracking
// links, each group in its original relative order.
func Prioritize(candidates []domain.CandidateLink) []domain.CandidateLink {
	direct := make([]domain.CandidateLink, 0, len(candidates))
	var tracking []domain.CandidateLink
	for _, c := range candidates {
		switch c.Kind {
		case domain.KindDirect:
			direct = append(direct, c)
		case domain.KindTracking:
			tracking = append(tracking, c)
		case domain.KindJunk:
		}
	}
	return append(direct, tracking...)
}

// ApplyBudget truncates an already prioritized list. A non-positive budget
// means no limit.
func ApplyBudget(prioritized []domain.CandidateLink, budget int) []domain.CandidateLink {
	if budget <= 0 || len(prioritized) <= budget {
		return prioritized
	}
	return prioritized[:budget]
}
