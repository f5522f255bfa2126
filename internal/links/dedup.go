package links

import "NewsletterScanner/internal/domain"

// Deduplicator collapses accepted destinations on exact final URL, keeping the
// first occurrence and its attribution.
type Deduplicator struct {
	seen       map[string]struct{}
	links      []domain.ResultLink
	duplicates int
}

// NewDeduplicator returns an empty deduplicator for one newsletter.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: map[string]struct{}{}}
}

// Add records a destination and reports whether it was new.
func (d *Deduplicator) Add(link domain.ResolvedLink) bool {
	if _, ok := d.seen[link.FinalURL]; ok {
		d.duplicates++
		return false
	}
	d.seen[link.FinalURL] = struct{}{}
	d.links = append(d.links, domain.ResultLink{
		URL:         link.FinalURL,
		OriginalURL: link.OriginalURL,
	})
	return true
}

// Links returns the unique destinations in first-seen order.
func (d *Deduplicator) Links() []domain.ResultLink {
	out := make([]domain.ResultLink, len(d.links))
	copy(out, d.links)
	return out
}

// Duplicates returns how many entries were dropped.
func (d *Deduplicator) Duplicates() int {
	return d.duplicates
}

// Dedupe is a convenience wrapper over Deduplicator for a complete list.
func Dedupe(resolved []domain.ResolvedLink) []domain.ResultLink {
	d := NewDeduplicator()
	for _, link := range resolved {
		d.Add(link)
	}
	return d.Links()
}
