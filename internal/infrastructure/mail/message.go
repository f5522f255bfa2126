package mail

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const maxPartBytes = 8 << 20

// ParseMessage turns an RFC 5322 message into a NewsletterEmail. The Date
// header is kept verbatim; the HTML part wins over plain text.
func ParseMessage(r io.Reader) (domain.NewsletterEmail, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return domain.NewsletterEmail{}, fmt.Errorf("create mail reader: %w", err)
	}
	defer mr.Close()

	email := domain.NewsletterEmail{
		Date: strings.TrimSpace(mr.Header.Get("Date")),
	}
	if subject, err := mr.Header.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = mr.Header.Get("Subject")
	}
	email.Sender = firstAddress(mr.Header)
	if received, err := mr.Header.Date(); err == nil {
		email.ReceivedAt = received
	}

	var plain string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.NewsletterEmail{}, fmt.Errorf("read next part: %w", err)
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		switch {
		case strings.HasPrefix(contentType, "text/html") && email.HTML == "":
			body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
			if err != nil {
				return domain.NewsletterEmail{}, fmt.Errorf("read html part: %w", err)
			}
			email.HTML = string(body)
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
			if err != nil {
				return domain.NewsletterEmail{}, fmt.Errorf("read text part: %w", err)
			}
			plain = string(body)
		}
	}

	if email.HTML == "" && plain != "" {
		email.HTML = textToHTML(plain)
	}
	return email, nil
}

func firstAddress(h gomail.Header) string {
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
		return list[0].Address
	}
	return strings.TrimSpace(h.Get("From"))
}

// textToHTML wraps bare URLs of a plain-text body in anchors so text-only
// newsletters flow through the same extractor.
func textToHTML(text string) string {
	var b strings.Builder
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, "<>()[]\"'.,;")
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			b.WriteString(`<a href="`)
			b.WriteString(strings.ReplaceAll(field, `"`, "%22"))
			b.WriteString(`"></a>`)
		}
	}
	return b.String()
}

// Select applies the sender filter and time window, newest first, capped at
// MaxNewsletters. Messages without a parseable date are kept but sort last.
func Select(emails []domain.NewsletterEmail, query ports.MailQuery) []domain.NewsletterEmail {
	out := make([]domain.NewsletterEmail, 0, len(emails))
	for _, e := range emails {
		if !MatchesSender(e.Sender, query.SenderFilter) {
			continue
		}
		if !query.Since.IsZero() && !e.ReceivedAt.IsZero() && e.ReceivedAt.Before(query.Since) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})

	if query.MaxNewsletters > 0 && len(out) > query.MaxNewsletters {
		out = out[:query.MaxNewsletters]
	}
	return out
}

// MatchesSender reports whether sender contains any filter, case-insensitively.
// An empty filter matches everything.
func MatchesSender(sender string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	lower := strings.ToLower(sender)
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
