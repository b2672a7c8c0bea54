package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/progress"
)

func sampleEnrollments() []model.Enrollment {
	return []model.Enrollment{
		{ID: 3, CourseName: "Tajweed Basics", CourseType: "tajweed", Status: model.StatusDropped},
		{ID: 1, CourseName: "Juz Amma", CourseType: "memorization", CompletionPercentage: model.Num(62), Status: model.StatusActive},
		{ID: 2, CourseName: "Fiqh of Salah", CourseTypeName: "Fiqh", PresentCount: model.Num(8), TotalAttendanceRecords: model.Num(10)},
	}
}

func TestBuildOrdersAndComputes(t *testing.T) {
	r := Build(sampleEnrollments(), progress.FallbackZero)
	if len(r.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(r.Rows))
	}
	if r.Rows[0].Enrollment.ID != 2 || r.Rows[1].Enrollment.ID != 1 || r.Rows[2].Enrollment.ID != 3 {
		t.Fatalf("unexpected order: %d %d %d", r.Rows[0].Enrollment.ID, r.Rows[1].Enrollment.ID, r.Rows[2].Enrollment.ID)
	}
	if r.Rows[0].Result.Progress != 80 || r.Rows[0].Result.Band != progress.BandSuccess {
		t.Fatalf("unexpected fiqh result: %+v", r.Rows[0].Result)
	}
	if r.Rows[1].Result.Band != progress.BandWarning {
		t.Fatalf("unexpected memorization band: %s", r.Rows[1].Result.Band)
	}
	if r.Summary.MeanProgress != 47 {
		t.Fatalf("expected mean 47, got %d", r.Summary.MeanProgress)
	}
}

func TestSnapshotsSkipUnidentified(t *testing.T) {
	enrollments := append(sampleEnrollments(), model.Enrollment{CourseName: "Orphan"})
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	snaps := Build(enrollments, progress.FallbackZero).Snapshots(at)
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for _, s := range snaps {
		if !s.TakenAt.Equal(at) {
			t.Fatalf("unexpected timestamp %s", s.TakenAt)
		}
		if s.EnrollmentID == 2 && (s.Category != "fiqh" || s.Band != "success") {
			t.Fatalf("unexpected fiqh snapshot: %+v", s)
		}
	}
}

func TestRenderEnrollments(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderEnrollments(&buf, Build(sampleEnrollments(), progress.FallbackZero), false); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Fiqh of Salah", "80%", "8/10", "Juz Amma", "62%", "Mean progress: 47%", "dropped 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no escape codes without color")
	}
}

func TestRenderEnrollmentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderEnrollments(&buf, Build(nil, progress.FallbackZero), false); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No enrollments found." {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderHistory(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		{EnrollmentID: 1, CourseName: "Juz Amma", Category: "memorization", Progress: 20, Band: "error", TakenAt: now.Add(-72 * time.Hour)},
		{EnrollmentID: 1, CourseName: "Juz Amma", Category: "memorization", Progress: 55, Band: "warning", TakenAt: now.Add(-24 * time.Hour)},
		{EnrollmentID: 1, CourseName: "Juz Amma", Category: "memorization", Progress: 80, Band: "success", TakenAt: now},
	}
	var buf bytes.Buffer
	if err := RenderHistory(&buf, snaps, now); err != nil {
		t.Fatalf("render history: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Juz Amma (memorization)", "Snapshots: 3 since 3 days ago", "20% -> 80% (+60)", "warning"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderLatest(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		{EnrollmentID: 2, CourseName: "Fiqh of Salah", Progress: 80, Band: "success", TakenAt: now.Add(-2 * time.Hour)},
		{EnrollmentID: 1, CourseName: "Juz Amma", Progress: 62, Band: "warning", TakenAt: now.Add(-30 * time.Minute)},
	}
	var buf bytes.Buffer
	if err := RenderLatest(&buf, snaps, now); err != nil {
		t.Fatalf("render latest: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "Fiqh of Salah") || !strings.Contains(lines[1], "2 hours ago") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "62%") || !strings.Contains(lines[2], "30 minutes ago") {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestRenderEventsSortedWithRelativeTime(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: 2, Title: "Eid Picnic", StartsAt: now.Add(14 * 24 * time.Hour), Attendees: 1200, MyRSVP: model.RSVPGoing},
		{ID: 1, Title: "Quran Competition", StartsAt: now.Add(48 * time.Hour)},
	}
	var buf bytes.Buffer
	if err := RenderEvents(&buf, events, now); err != nil {
		t.Fatalf("render events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "Quran Competition") || !strings.Contains(lines[1], "2 days from now") {
		t.Fatalf("unexpected first event line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "1,200") || !strings.Contains(lines[2], "going") {
		t.Fatalf("unexpected second event line: %q", lines[2])
	}
}

func TestProgressBar(t *testing.T) {
	cases := map[int]string{
		0:   "░░░░░░░░░░",
		50:  "█████░░░░░",
		75:  "████████░░",
		100: "██████████",
		140: "██████████",
	}
	for pct, want := range cases {
		if got := ProgressBar(pct, 10); got != want {
			t.Fatalf("ProgressBar(%d): got %q, want %q", pct, got, want)
		}
	}
}

func TestSparklineFixedScale(t *testing.T) {
	if got := Sparkline([]float64{0, 50, 100}); got != " +@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{60, 60}); got != "++" {
		t.Fatalf("flat series should not jump to the middle of an auto scale: %q", got)
	}
}
