package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/domain"
)

const digest = "From: Weekly Digest <digest@news.example.com>\r\n" +
	"Subject: Issue #7\r\n" +
	"Date: Fri, 17 Oct 2025 10:47:43 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<a href=\"https://github.com/karpathy/nanochat?utm_source=x\">repo</a>\r\n" +
	"<a href=\"https://github.com/karpathy/nanochat?utm_source=x\">repo again</a>\r\n" +
	"<a href=\"https://example.com/blog/2025/10/new-release\">post</a>\r\n" +
	"<a href=\"https://news.example.com/preferences\">prefs</a>\r\n"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "digest.eml"), []byte(digest), 0o644))

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)
	cfg.Mail.Driver = config.MailEML
	cfg.Mail.EMLDir = dir
	cfg.Store.Driver = config.StoreMemory
	cfg.Pipeline.TimeWindow = ""
	return cfg
}

func TestRunOnceEndToEnd(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := New(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer application.Close()

	snap, err := application.RunOnce(context.Background(), domain.JobParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, snap.Status)
	require.Len(t, snap.Results, 1)

	result := snap.Results[0]
	assert.Equal(t, "Fri, 17 Oct 2025 10:47:43 +0000", result.Date)
	assert.Equal(t, []domain.ResultLink{
		{URL: "https://github.com/karpathy/nanochat?utm_source=x"},
		{URL: "https://example.com/blog/2025/10/new-release"},
	}, result.Links)
	assert.Equal(t, 1, result.Stats.Duplicates)
	assert.Equal(t, 1, result.Stats.Junk)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Store.Driver = "cassandra"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBadgerStoreDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Store.Driver = config.StoreBadger
	cfg.Store.BadgerDir = filepath.Join(t.TempDir(), "jobs")

	application, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	snap, err := application.RunOnce(context.Background(), domain.JobParams{TimeWindow: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, snap.Status)
	require.NoError(t, application.Close())
}

func TestCheck(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)
	cfg.Filters.AllowDomains = []string{"blog.internal.example"}

	reports := Check(cfg, []string{
		"https://github.com/karpathy/nanochat?utm_source=x",
		"https://github.com/karpathy",
		"mailto:editor@example.com",
		"https://blog.internal.example/some-post",
		"https://example.com/",
	})
	require.Len(t, reports, 5)

	assert.True(t, reports[0].Accepted)
	assert.Equal(t, "direct", reports[0].Kind)
	assert.False(t, reports[1].Accepted)
	assert.Equal(t, "junk", reports[2].Kind)
	assert.False(t, reports[2].Accepted)
	assert.True(t, reports[3].Accepted)
	assert.Equal(t, string(domain.ReasonHomepage), reports[4].Reason)
}

func TestScheduledJobID(t *testing.T) {
	t.Parallel()

	trigger := time.Date(2025, time.October, 17, 10, 47, 43, 0, time.UTC)
	assert.Equal(t, domain.JobID("20251017_104743"), scheduledJobID(trigger))

	_, err := domain.ParseJobID(newJobID().String())
	assert.NoError(t, err)
}
