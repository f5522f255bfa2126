package content

import "strings"

// Rules is the injected filter configuration for a Validator. Domain entries
// are host names matched on dot boundaries, optionally followed by a path
// prefix ("docs.google.com/forms"). A Validator copies Rules at construction,
// so later changes to the slices have no effect on it.
type Rules struct {
	SponsorDomains    []string `yaml:"sponsorDomains"`
	AppStoreDomains   []string `yaml:"appStoreDomains"`
	AllowDomains      []string `yaml:"allowDomains"`
	AccountKeywords   []string `yaml:"accountKeywords"`
	ContentIndicators []string `yaml:"contentIndicators"`
}

// DefaultRules returns the curated lists the service ships with.
func DefaultRules() Rules {
	return Rules{
		SponsorDomains: []string{
			"doubleclick.net",
			"googleadservices.com",
			"googlesyndication.com",
			"adsrvr.org",
			"taboola.com",
			"outbrain.com",
			"sparkloop.app",
			"passionfroot.me",
			"sponsy.co",
			"paved.com",
			"swapstack.co",
			"surveymonkey.com",
			"typeform.com",
			"forms.gle",
			"tally.so",
			"qualtrics.com",
			"jotform.com",
			"docs.google.com/forms",
		},
		AppStoreDomains: []string{
			"apps.apple.com",
			"itunes.apple.com",
			"play.google.com",
			"apps.microsoft.com",
			"chromewebstore.google.com",
			"chrome.google.com/webstore",
			"appgallery.huawei.com",
		},
		AllowDomains: []string{
			"github.com",
			"gitlab.com",
			"codeberg.org",
			"arxiv.org",
			"huggingface.co",
			"youtu.be",
			"medium.com",
			"news.ycombinator.com",
			"lwn.net",
			"nytimes.com",
			"washingtonpost.com",
			"wsj.com",
			"ft.com",
			"bloomberg.com",
			"reuters.com",
			"theguardian.com",
			"bbc.co.uk",
			"bbc.com",
			"economist.com",
			"theatlantic.com",
			"theverge.com",
			"techcrunch.com",
			"arstechnica.com",
			"wired.com",
			"technologyreview.com",
			"nature.com",
			"science.org",
			"stratechery.com",
		},
		AccountKeywords: []string{
			"account",
			"accounts",
			"myaccount",
			"my-account",
			"settings",
			"profile",
			"profiles",
			"login",
			"log-in",
			"signin",
			"sign-in",
			"signup",
			"sign-up",
			"register",
			"logout",
			"password",
			"billing",
			"subscribe",
		},
		ContentIndicators: []string{
			"/blog/",
			"/blogs/",
			"/article/",
			"/articles/",
			"/news/",
			"/post/",
			"/posts/",
			"/p/",
			"/story/",
			"/stories/",
			"/pulse/",
			"/status/",
			"/shorts/",
			"/video/",
			"/videos/",
			"/abs/",
		},
	}
}

// Merge returns a new Rules with extra entries appended to each list.
// Neither receiver nor argument is modified.
func (r Rules) Merge(extra Rules) Rules {
	return Rules{
		SponsorDomains:    mergeList(r.SponsorDomains, extra.SponsorDomains),
		AppStoreDomains:   mergeList(r.AppStoreDomains, extra.AppStoreDomains),
		AllowDomains:      mergeList(r.AllowDomains, extra.AllowDomains),
		AccountKeywords:   mergeList(r.AccountKeywords, extra.AccountKeywords),
		ContentIndicators: mergeList(r.ContentIndicators, extra.ContentIndicators),
	}
}

func mergeList(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

type domainEntry struct {
	host       string
	pathPrefix string
}

// domainSet is the compiled, read-only form of a domain list.
type domainSet []domainEntry

func compileDomains(list []string) domainSet {
	set := make(domainSet, 0, len(list))
	for _, entry := range list {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		host, prefix, _ := strings.Cut(entry, "/")
		set = append(set, domainEntry{host: normalizeHost(host), pathPrefix: prefix})
	}
	return set
}

func (s domainSet) match(host, lowerPath string) bool {
	trimmed := strings.TrimPrefix(lowerPath, "/")
	for _, e := range s {
		if !hostMatches(host, e.host) {
			continue
		}
		if e.pathPrefix == "" || strings.HasPrefix(trimmed, e.pathPrefix) {
			return true
		}
	}
	return false
}

func hostMatches(host, domainName string) bool {
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}

func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, prefix := range []string{"www.", "m.", "mobile."} {
		if strings.HasPrefix(host, prefix) && strings.Count(host, ".") > 1 {
			return strings.TrimPrefix(host, prefix)
		}
	}
	return host
}
