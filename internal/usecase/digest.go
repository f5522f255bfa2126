package usecase

import (
	"fmt"
	"strings"

	"NewsletterScanner/internal/domain"
)

// buildDigestMessage renders completed results as plain text, one block per
// newsletter. Newsletters without links are skipped.
func buildDigestMessage(jobID domain.JobID, results []domain.NewsletterResult) string {
	var (
		b     strings.Builder
		total int
	)
	for _, r := range results {
		if r.LinkCount == 0 {
			continue
		}
		total += r.LinkCount
		fmt.Fprintf(&b, "%s\n%s | %s\n", r.Subject, r.Sender, r.Date)
		for _, l := range r.Links {
			fmt.Fprintf(&b, "- %s\n", l.URL)
		}
		b.WriteString("\n")
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("Job %s: %d links from %d newsletters\n\n", jobID, total, len(results)) + b.String()
}
