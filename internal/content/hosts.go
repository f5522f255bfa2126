package content

import (
	"strings"
	"unicode"
)

// HostRule captures the structural expectations for one family of hosts.
// Profile flags social/profile roots that lack a content segment; Require
// reports whether the path carries what the host needs to be an article.
// Either may be nil.
type HostRule struct {
	Name    string
	Hosts   []string
	Profile func(segments []string) bool
	Require func(segments []string) bool
}

// Registry keeps a mapping from host names to their rules.
type Registry struct {
	rules map[string]HostRule
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: map[string]HostRule{}}
}

// Register adds or replaces the rule for every host it names.
func (r *Registry) Register(rule HostRule) {
	if r.rules == nil {
		r.rules = map[string]HostRule{}
	}
	for _, host := range rule.Hosts {
		r.rules[normalizeHost(host)] = rule
	}
}

// Resolve returns the rule for a host, walking up parent domains so
// "gist.github.com" finds the "github.com" rule.
func (r *Registry) Resolve(host string) (HostRule, bool) {
	for h := host; h != ""; {
		if rule, ok := r.rules[h]; ok {
			return rule, true
		}
		_, parent, found := strings.Cut(h, ".")
		if !found || !strings.Contains(parent, ".") {
			break
		}
		h = parent
	}
	return HostRule{}, false
}

// DefaultRegistry returns the built-in host rules.
func DefaultRegistry() *Registry {
	reg := NewRegistry()

	reg.Register(HostRule{
		Name:    "microblog",
		Hosts:   []string{"twitter.com", "x.com"},
		Profile: func(seg []string) bool { return !hasSegmentFollowed(seg, "status") },
		Require: func(seg []string) bool { return hasSegmentFollowed(seg, "status") },
	})
	reg.Register(HostRule{
		Name:    "bluesky",
		Hosts:   []string{"bsky.app"},
		Profile: func(seg []string) bool { return !hasSegmentFollowed(seg, "post") },
		Require: func(seg []string) bool { return hasSegmentFollowed(seg, "post") },
	})
	reg.Register(HostRule{
		Name:  "threads",
		Hosts: []string{"threads.net", "threads.com"},
		Profile: func(seg []string) bool {
			return !hasSegmentFollowed(seg, "post")
		},
	})
	reg.Register(HostRule{
		Name:  "video",
		Hosts: []string{"youtube.com"},
		Profile: func(seg []string) bool {
			return len(seg) == 0 || !inSet(seg[0], "watch", "shorts", "live", "embed", "playlist")
		},
	})
	reg.Register(HostRule{
		Name:    "video-short",
		Hosts:   []string{"youtu.be"},
		Require: func(seg []string) bool { return len(seg) >= 1 },
	})
	reg.Register(HostRule{
		Name:  "professional-network",
		Hosts: []string{"linkedin.com"},
		Profile: func(seg []string) bool {
			if len(seg) == 0 {
				return true
			}
			if inSet(seg[0], "company", "in", "school", "showcase", "groups") {
				return len(seg) <= 2
			}
			return inSet(seg[0], "feed", "mynetwork", "jobs", "notifications", "messaging")
		},
	})
	reg.Register(HostRule{
		Name:  "photo",
		Hosts: []string{"instagram.com"},
		Profile: func(seg []string) bool {
			return len(seg) < 2 || !inSet(seg[0], "p", "reel", "tv")
		},
	})
	reg.Register(HostRule{
		Name:  "social",
		Hosts: []string{"facebook.com", "fb.com"},
		Profile: func(seg []string) bool {
			for _, s := range seg {
				if inSet(s, "posts", "videos", "permalink.php", "story.php", "watch") {
					return false
				}
			}
			return true
		},
	})
	reg.Register(HostRule{
		Name:  "short-video",
		Hosts: []string{"tiktok.com"},
		Profile: func(seg []string) bool {
			return !hasSegmentFollowed(seg, "video")
		},
	})
	reg.Register(HostRule{
		Name:  "code-hosting",
		Hosts: []string{"github.com", "gitlab.com", "bitbucket.org", "codeberg.org"},
		Require: func(seg []string) bool {
			if len(seg) < 2 {
				return false
			}
			return !inSet(seg[0], "settings", "login", "join", "signup", "marketplace", "features",
				"pricing", "topics", "explore", "sponsors", "orgs", "about", "enterprise",
				"collections", "trending", "notifications", "search", "users", "dashboard")
		},
	})
	reg.Register(HostRule{
		Name:  "long-form",
		Hosts: []string{"medium.com"},
		Require: func(seg []string) bool {
			if len(seg) < 2 {
				return false
			}
			return !inSet(seg[0], "tag", "tags", "topics", "m", "me", "search", "membership", "plans", "about")
		},
	})
	reg.Register(HostRule{
		Name:  "newsletter-publishing",
		Hosts: []string{"substack.com"},
		Require: func(seg []string) bool {
			if hasSegmentFollowed(seg, "p") {
				return true
			}
			return len(seg) >= 2 && strings.HasPrefix(seg[0], "@")
		},
	})

	return reg
}

func hasSegmentFollowed(seg []string, name string) bool {
	for i := 0; i < len(seg)-1; i++ {
		if seg[i] == name && seg[i+1] != "" {
			return true
		}
	}
	return false
}

func inSet(v string, set ...string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

func isNumericID(seg string) bool {
	if len(seg) < 6 {
		return false
	}
	for _, r := range seg {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
