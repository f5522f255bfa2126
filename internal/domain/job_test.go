package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseJobID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw string
		ok  bool
	}{
		{"20251017_104743", true},
		{"3f1c2a9e-7b0d-4c4e-9a51-0d7f3e2b6c11", true},
		{"nightly.2025-10-17", true},
		{"", false},
		{"-leading-dash", false},
		{"has space", false},
		{"slash/inside", false},
		{strings.Repeat("a", 129), false},
	}

	for _, tc := range cases {
		id, err := ParseJobID(tc.raw)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseJobID(%q) error: %v", tc.raw, err)
			}
			if id.String() != tc.raw {
				t.Fatalf("ParseJobID(%q) changed the id to %q", tc.raw, id)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidJobID) {
			t.Fatalf("ParseJobID(%q) expected ErrInvalidJobID, got %v", tc.raw, err)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.October, 17, 10, 47, 43, 0, time.UTC)
	job := NewExtractionJob("20251017_104743", JobParams{MaxNewsletters: 3}, now)

	if job.Status != JobPending || job.Progress != 0 {
		t.Fatalf("unexpected initial state: %+v", job)
	}
	if err := job.Advance(5, "job accepted"); err != nil {
		t.Fatalf("Advance on pending: %v", err)
	}
	if err := job.Complete(nil, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete on pending expected ErrInvalidTransition, got %v", err)
	}
	if err := job.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := job.Start(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start expected ErrInvalidTransition, got %v", err)
	}

	if err := job.Advance(40, "resolving links (2/5)"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := job.Advance(30, "late update"); err != nil {
		t.Fatalf("Advance lower: %v", err)
	}
	if job.Progress != 40 || job.ProgressMessage != "late update" {
		t.Fatalf("progress must not decrease: %d %q", job.Progress, job.ProgressMessage)
	}
	if err := job.Advance(250, "overflow"); err != nil || job.Progress != 100 {
		t.Fatalf("progress must clamp at 100, got %d (%v)", job.Progress, err)
	}

	if err := job.Complete(nil, now.Add(time.Minute)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if job.Results == nil || len(job.Results) != 0 {
		t.Fatalf("completed job must carry an empty result list, got %#v", job.Results)
	}
	if job.CompletedAt == nil || !job.CompletedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected completion time: %v", job.CompletedAt)
	}
}

func TestTerminalJobIsImmutable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, finish := range []func(*ExtractionJob) error{
		func(j *ExtractionJob) error { return j.Complete([]NewsletterResult{{Subject: "s"}}, now) },
		func(j *ExtractionJob) error { return j.Fail("boom", now) },
	} {
		job := NewExtractionJob("terminal", JobParams{}, now)
		if err := job.Start(now); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := finish(job); err != nil {
			t.Fatalf("finish: %v", err)
		}

		before := *job
		checks := []error{
			job.Start(now),
			job.Advance(10, "again"),
			job.Complete(nil, now),
			job.Fail("again", now),
		}
		for i, err := range checks {
			if !errors.Is(err, ErrTerminal) {
				t.Fatalf("mutation %d on %s job expected ErrTerminal, got %v", i, before.Status, err)
			}
		}
		if job.Status != before.Status || job.Progress != before.Progress || job.ProgressMessage != before.ProgressMessage {
			t.Fatalf("terminal job changed: before %+v after %+v", before, *job)
		}
	}
}

func TestFailClearsResults(t *testing.T) {
	t.Parallel()

	job := NewExtractionJob("fail", JobParams{}, time.Now())
	job.Results = []NewsletterResult{{Subject: "partial"}}
	if err := job.Fail("fetch newsletters: timeout", time.Now()); err != nil {
		t.Fatalf("Fail on pending: %v", err)
	}
	if job.Results != nil {
		t.Fatalf("failed job must not keep partial results: %+v", job.Results)
	}
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.October, 17, 0, 0, 0, 0, time.UTC)
	job := NewExtractionJob("snap", JobParams{}, now)

	raw, err := json.Marshal(job.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var pending map[string]interface{}
	if err := json.Unmarshal(raw, &pending); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pending["results"] != nil || pending["error_message"] != nil {
		t.Fatalf("pending snapshot must have null results and error: %s", raw)
	}
	if pending["job_id"] != "snap" || pending["status"] != "pending" {
		t.Fatalf("unexpected snapshot: %s", raw)
	}

	_ = job.Start(now)
	_ = job.Complete([]NewsletterResult{{
		Subject:   "Issue",
		Links:     []ResultLink{{URL: "https://example.com/p/x", OriginalURL: "https://t.co/x"}},
		LinkCount: 1,
	}}, now)
	snap := job.Snapshot()
	snap.Results[0].Links[0].URL = "mutated"
	if job.Results[0].Links[0].URL != "https://example.com/p/x" {
		t.Fatal("snapshot must not alias job results")
	}
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"":    0,
		"7d":  7 * 24 * time.Hour,
		"36h": 36 * time.Hour,
		"90m": 90 * time.Minute,
	}
	for raw, want := range cases {
		got, err := ParseWindow(raw)
		if err != nil {
			t.Fatalf("ParseWindow(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseWindow(%q) = %v, want %v", raw, got, want)
		}
	}

	for _, raw := range []string{"xd", "-1d", "soon", "-5h"} {
		if _, err := ParseWindow(raw); err == nil {
			t.Fatalf("ParseWindow(%q) expected error", raw)
		}
	}
}
