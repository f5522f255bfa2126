package mail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const multipartMessage = "From: Weekly Digest <digest@news.example.com>\r\n" +
	"To: reader@example.org\r\n" +
	"Subject: Issue #42\r\n" +
	"Date: Fri, 17 Oct 2025 10:47:43 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"xyz\"\r\n" +
	"\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Read it: https://example.com/plain\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<a href=\"https://example.com/p/one?a=1&amp;b=2\">one</a>\r\n" +
	"--xyz--\r\n"

const plainMessage = "From: other@letters.example.net\r\n" +
	"Subject: Plain\r\n" +
	"Date: Wed, 15 Oct 2025 08:00:00 -0700\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Top story (https://example.com/blog/story). Also <https://example.com/p/two>.\r\n"

func TestParseMessagePrefersHTML(t *testing.T) {
	t.Parallel()

	email, err := ParseMessage(strings.NewReader(multipartMessage))
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	if email.Subject != "Issue #42" {
		t.Fatalf("unexpected subject: %q", email.Subject)
	}
	if email.Sender != "digest@news.example.com" {
		t.Fatalf("unexpected sender: %q", email.Sender)
	}
	if email.Date != "Fri, 17 Oct 2025 10:47:43 +0000" {
		t.Fatalf("date must be kept verbatim, got %q", email.Date)
	}
	if email.ReceivedAt.IsZero() {
		t.Fatal("expected parsed received time")
	}
	if !strings.Contains(email.HTML, "https://example.com/p/one") || strings.Contains(email.HTML, "/plain") {
		t.Fatalf("expected html part, got %q", email.HTML)
	}
}

func TestParseMessagePlainTextFallback(t *testing.T) {
	t.Parallel()

	email, err := ParseMessage(strings.NewReader(plainMessage))
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	want := `<a href="https://example.com/blog/story"></a><a href="https://example.com/p/two"></a>`
	if email.HTML != want {
		t.Fatalf("unexpected html: %q", email.HTML)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.October, 17, 12, 0, 0, 0, time.UTC)
	emails := []domain.NewsletterEmail{
		{Subject: "old", Sender: "a@news.example.com", ReceivedAt: now.Add(-10 * 24 * time.Hour)},
		{Subject: "mid", Sender: "a@news.example.com", ReceivedAt: now.Add(-2 * time.Hour)},
		{Subject: "new", Sender: "A@NEWS.example.com", ReceivedAt: now.Add(-1 * time.Hour)},
		{Subject: "other", Sender: "b@elsewhere.org", ReceivedAt: now},
		{Subject: "undated", Sender: "a@news.example.com"},
	}

	got := Select(emails, ports.MailQuery{
		Since:          now.Add(-24 * time.Hour),
		MaxNewsletters: 2,
		SenderFilter:   []string{"news.example.com"},
	})

	if len(got) != 2 || got[0].Subject != "new" || got[1].Subject != "mid" {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestDirSourceFetch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"a.eml":      multipartMessage,
		"b.EML":      plainMessage,
		"notes.txt":  "ignored",
		"broken.eml": "",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	src := NewDirSource(dir, nil)
	emails, err := src.Fetch(context.Background(), ports.MailQuery{})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	subjects := map[string]bool{}
	for _, e := range emails {
		subjects[e.Subject] = true
	}
	if !subjects["Issue #42"] || !subjects["Plain"] {
		t.Fatalf("unexpected subjects: %v", subjects)
	}
	if emails[0].Subject != "Issue #42" {
		t.Fatalf("expected newest first, got %q", emails[0].Subject)
	}
}

func TestDirSourceMissingDir(t *testing.T) {
	t.Parallel()

	src := NewDirSource(filepath.Join(t.TempDir(), "missing"), nil)
	if _, err := src.Fetch(context.Background(), ports.MailQuery{}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
