package links

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsletterScanner/internal/domain"
)

// maxDecodePasses bounds repeated decoding of multiply-encoded hrefs.
const maxDecodePasses = 3

// Only semicolon-terminated references are decoded so query parameters such as
// "&copy=2" survive untouched.
var entityExpr = regexp.MustCompile(`&(#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[A-Za-z][A-Za-z0-9]{1,31});`)

// Extract returns every hyperlink target in document order, entity-decoded.
// Duplicates are preserved; empty, fragment-only and script targets are dropped.
func Extract(body string) []string {
	var out []string
	for _, href := range rawHrefs(body) {
		if decoded := Decode(href); usable(decoded) {
			out = append(out, decoded)
		}
	}
	return out
}

// Candidates extracts and classifies every hyperlink target, keeping the raw
// attribute value next to its decoded form.
func Candidates(body string) []domain.CandidateLink {
	var out []domain.CandidateLink
	for _, href := range rawHrefs(body) {
		decoded := Decode(href)
		if !usable(decoded) {
			continue
		}
		out = append(out, domain.CandidateLink{
			RawURL:     href,
			DecodedURL: decoded,
			Kind:       Classify(decoded),
		})
	}
	return out
}

func rawHrefs(body string) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			out = append(out, href)
		}
	})
	return out
}

// Decode strips surrounding whitespace and resolves leftover HTML entity
// references. The HTML parser already decoded one level; newsletters routinely
// double-encode ("&amp;amp;"), which corrupts query-string boundaries.
func Decode(href string) string {
	value := strings.TrimSpace(href)
	for i := 0; i < maxDecodePasses; i++ {
		next := entityExpr.ReplaceAllStringFunc(value, html.UnescapeString)
		if next == value {
			break
		}
		value = next
	}
	return value
}

func usable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}
