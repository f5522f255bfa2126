package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// DirSource reads .eml files from a directory, for offline runs.
type DirSource struct {
	dir    string
	logger *slog.Logger
}

var _ ports.MailSource = (*DirSource)(nil)

// NewDirSource points the source at a directory of RFC 5322 files.
func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logger}
}

// Fetch parses every .eml file and applies the query. A missing directory is
// an error; a single unparseable file is logged and skipped.
func (s *DirSource) Fetch(ctx context.Context, query ports.MailQuery) ([]domain.NewsletterEmail, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read mail dir %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	emails := make([]domain.NewsletterEmail, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		email, err := s.parseFile(filepath.Join(s.dir, name))
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skip unparseable message", "file", name, "error", err)
			}
			continue
		}
		emails = append(emails, email)
	}

	return Select(emails, query), nil
}

func (s *DirSource) parseFile(path string) (domain.NewsletterEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.NewsletterEmail{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ParseMessage(f)
}
