package links

import (
	"net/url"
	"reflect"
	"testing"

	"NewsletterScanner/internal/domain"
)

func TestExtractDocumentOrder(t *testing.T) {
	t.Parallel()

	body := `
	<html><body>
	  <a href="https://a.example.com/post/1">one</a>
	  <p><a href="  https://b.example.com/blog/two ">two</a></p>
	  <a href="">empty</a>
	  <a>no href</a>
	  <a href="#top">anchor</a>
	  <a href="javascript:void(0)">script</a>
	  <a href="https://a.example.com/post/1">again</a>
	</body></html>`

	got := Extract(body)
	want := []string{
		"https://a.example.com/post/1",
		"https://b.example.com/blog/two",
		"https://a.example.com/post/1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractDecodesEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"single encoded", `<a href="https://site.com/path?a=1&amp;b=2">x</a>`, "https://site.com/path?a=1&b=2"},
		{"double encoded", `<a href="https://site.com/path?a=1&amp;amp;b=2">x</a>`, "https://site.com/path?a=1&b=2"},
		{"numeric", `<a href="https://site.com/path?a=1&amp;#38;b=2">x</a>`, "https://site.com/path?a=1&b=2"},
		{"bare parameter kept", `<a href="https://site.com/path?a=1&copy=2">x</a>`, "https://site.com/path?a=1&copy=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.body)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("Extract() = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestDecodedQueryMatchesUnencoded(t *testing.T) {
	t.Parallel()

	decoded := Decode("https://site.com/path?a=1&amp;b=2&amp;amp;c=3")
	got, err := url.Parse(decoded)
	if err != nil {
		t.Fatalf("parse decoded: %v", err)
	}
	want, _ := url.Parse("https://site.com/path?a=1&b=2&c=3")

	if !reflect.DeepEqual(got.Query(), want.Query()) {
		t.Fatalf("query = %v, want %v", got.Query(), want.Query())
	}
}

func TestExtractEmptyBody(t *testing.T) {
	t.Parallel()

	if got := Extract("   "); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestIsJunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want bool
	}{
		{"mailto:editor@example.com", true},
		{"tel:+15550100", true},
		{"ftp://files.example.com/a", true},
		{"https://example.com/unsubscribe?id=1", true},
		{"https://example.com/email/preferences", true},
		{"https://example.com/account/settings", true},
		{"https://example.com/privacy-policy", true},
		{"https://cdn.example.com/logo.PNG", true},
		{"https://example.com/favicon.ico", true},
		{"https://example.com/favicon-32x32", true},
		{"https://example.com/cdn-cgi/l/email-protection#abc", true},
		{"https:///nohost", true},
		{"https://example.com/unsubscribe.php?u=42", true},
		{"https://example.com/email-preferences", true},
		{"https://example.com/list?action=unsubscribe", true},
		{"https://example.com/blog/why-go", false},
		{"https://github.com/karpathy/nanochat", false},
		{"https://blog.example.com/2024/05/vscode-settings-explained", false},
		{"https://example.com/p/privacy-policy-changes-explained", true},
		{"https://example.com/p/rethinking-user-preferences-in-ui", false},
	}

	for _, tt := range tests {
		if got := IsJunk(tt.link); got != tt.want {
			t.Errorf("IsJunk(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	t.Parallel()

	in := []string{
		"https://example.com/p/one",
		"mailto:a@b.c",
		"https://example.com/p/two",
		"https://example.com/unsubscribe",
	}
	want := []string{"https://example.com/p/one", "https://example.com/p/two"}
	if got := Filter(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter() = %v, want %v", got, want)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want domain.LinkKind
	}{
		{"https://github.com/karpathy/nanochat?utm_source=x", domain.KindDirect},
		{"https://www.theverge.com/2025/10/17/story", domain.KindDirect},
		{"https://click.convertkit-mail.com/abc123", domain.KindTracking},
		{"https://links.tldrnewsletter.com/AbCdEf", domain.KindTracking},
		{"https://example.us1.list-manage.com/track/click?u=1&id=2", domain.KindTracking},
		{"https://u123.ct.sendgrid.net/ls/click?upn=xyz", domain.KindTracking},
		{"https://newsletter.substack.com/redirect/2/abc", domain.KindTracking},
		{"https://example.com/out?url=https%3A%2F%2Ftarget.com%2Fa", domain.KindTracking},
		{"https://t.co/xyz", domain.KindTracking},
		{"https://example.com/unsubscribe", domain.KindJunk},
		{"https://click.example.com/unsubscribe/abc", domain.KindJunk},
		{"mailto:a@b.c", domain.KindJunk},
		{"::not a url", domain.KindJunk},
	}

	for _, tt := range tests {
		if got := Classify(tt.link); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.link, got, tt.want)
		}
	}
}

func TestCandidatesKeepRawAndDecoded(t *testing.T) {
	t.Parallel()

	got := Candidates(`<a href="https://click.example.com/x?a=1&amp;amp;b=2">x</a><a href="mailto:a@b.c">m</a>`)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].RawURL != "https://click.example.com/x?a=1&amp;b=2" {
		t.Fatalf("unexpected raw url: %s", got[0].RawURL)
	}
	if got[0].DecodedURL != "https://click.example.com/x?a=1&b=2" {
		t.Fatalf("unexpected decoded url: %s", got[0].DecodedURL)
	}
	if got[0].Kind != domain.KindTracking || got[1].Kind != domain.KindJunk {
		t.Fatalf("unexpected kinds: %s, %s", got[0].Kind, got[1].Kind)
	}
}

func TestPrioritizeAndBudget(t *testing.T) {
	t.Parallel()

	in := []domain.CandidateLink{
		{DecodedURL: "t1", Kind: domain.KindTracking},
		{DecodedURL: "d1", Kind: domain.KindDirect},
		{DecodedURL: "j1", Kind: domain.KindJunk},
		{DecodedURL: "t2", Kind: domain.KindTracking},
		{DecodedURL: "d2", Kind: domain.KindDirect},
	}

	prioritized := Prioritize(in)
	var order []string
	for _, c := range prioritized {
		order = append(order, c.DecodedURL)
	}
	if want := []string{"d1", "d2", "t1", "t2"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("Prioritize() order = %v, want %v", order, want)
	}

	budgeted := ApplyBudget(prioritized, 3)
	if len(budgeted) != 3 || budgeted[0].DecodedURL != "d1" || budgeted[1].DecodedURL != "d2" {
		t.Fatalf("budget starved direct links: %v", budgeted)
	}
	if len(ApplyBudget(prioritized, 0)) != 4 {
		t.Fatal("zero budget should mean unlimited")
	}
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator()
	d.Add(domain.ResolvedLink{FinalURL: "https://a.com/p/1", OriginalURL: "https://click.x.com/1"})
	d.Add(domain.ResolvedLink{FinalURL: "https://b.com/p/2"})
	if d.Add(domain.ResolvedLink{FinalURL: "https://a.com/p/1", OriginalURL: "https://click.x.com/9"}) {
		t.Fatal("duplicate reported as new")
	}

	got := d.Links()
	want := []domain.ResultLink{
		{URL: "https://a.com/p/1", OriginalURL: "https://click.x.com/1"},
		{URL: "https://b.com/p/2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Links() = %v, want %v", got, want)
	}
	if d.Duplicates() != 1 {
		t.Fatalf("expected 1 duplicate, got %d", d.Duplicates())
	}
}

func TestDedupeTrailingSlashIsDistinct(t *testing.T) {
	t.Parallel()

	got := Dedupe([]domain.ResolvedLink{
		{FinalURL: "https://a.com/p/1"},
		{FinalURL: "https://a.com/p/1/"},
	})
	if len(got) != 2 {
		t.Fatalf("expected exact-string dedup to keep both, got %v", got)
	}
}
