package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/madrasa/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "madrasa.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSessionRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.LoadSession(ctx); err != nil || ok {
		t.Fatalf("expected no session, got ok=%v err=%v", ok, err)
	}

	saved := model.SessionState{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         model.User{ID: 7, Name: "Aisha", Email: "aisha@example.org", Role: "student"},
		SavedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := st.SaveSession(ctx, saved); err != nil {
		t.Fatalf("save session: %v", err)
	}
	saved.AccessToken = "access-2"
	if err := st.SaveSession(ctx, saved); err != nil {
		t.Fatalf("overwrite session: %v", err)
	}

	got, ok, err := st.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("load session: ok=%v err=%v", ok, err)
	}
	if got.AccessToken != "access-2" || got.User.Role != "student" || !got.SavedAt.Equal(saved.SavedAt) {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := st.ClearSession(ctx); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, ok, err := st.LoadSession(ctx); err != nil || ok {
		t.Fatalf("expected cleared session, got ok=%v err=%v", ok, err)
	}
}

func TestSnapshotsHistoryAndLatest(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var snaps []model.Snapshot
	for i := 0; i < 4; i++ {
		snaps = append(snaps, model.Snapshot{
			EnrollmentID: 1,
			CourseName:   "Juz Amma",
			Category:     "memorization",
			Progress:     20 * (i + 1),
			Band:         "error",
			TakenAt:      base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	snaps = append(snaps, model.Snapshot{
		EnrollmentID: 2,
		CourseName:   "Fiqh of Salah",
		Category:     "fiqh",
		Progress:     90,
		Band:         "success",
		TakenAt:      base,
	})
	if err := st.InsertSnapshots(ctx, snaps); err != nil {
		t.Fatalf("insert snapshots: %v", err)
	}

	history, err := st.ListSnapshots(ctx, model.HistoryFilter{EnrollmentID: 1, Last: 3})
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(history))
	}
	if history[0].Progress != 40 || history[2].Progress != 80 {
		t.Fatalf("unexpected history order: %+v", history)
	}

	since := base.Add(36 * time.Hour)
	recent, err := st.ListSnapshots(ctx, model.HistoryFilter{EnrollmentID: 1, Since: &since})
	if err != nil {
		t.Fatalf("list snapshots since: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 snapshots since %s, got %d", since, len(recent))
	}

	latest, err := st.LatestSnapshots(ctx)
	if err != nil {
		t.Fatalf("latest snapshots: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(latest))
	}
	if latest[0].CourseName != "Fiqh of Salah" || latest[1].Progress != 80 {
		t.Fatalf("unexpected latest snapshots: %+v", latest)
	}
}

func TestSnapshotsOrderWithinOneSecond(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	midnight := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	earlier := midnight.Add(120 * time.Millisecond)
	later := midnight.Add(123 * time.Millisecond)

	snaps := []model.Snapshot{
		{EnrollmentID: 3, CourseName: "Tajweed", Category: "tajweed", Progress: 20, Band: "error", TakenAt: later},
		{EnrollmentID: 3, CourseName: "Tajweed", Category: "tajweed", Progress: 10, Band: "error", TakenAt: earlier},
	}
	if err := st.InsertSnapshots(ctx, snaps); err != nil {
		t.Fatalf("insert snapshots: %v", err)
	}

	history, err := st.ListSnapshots(ctx, model.HistoryFilter{EnrollmentID: 3})
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(history) != 2 || !history[0].TakenAt.Equal(earlier) || !history[1].TakenAt.Equal(later) {
		t.Fatalf("expected chronological order, got %+v", history)
	}

	latest, err := st.LatestSnapshots(ctx)
	if err != nil {
		t.Fatalf("latest snapshots: %v", err)
	}
	if len(latest) != 1 || latest[0].Progress != 20 {
		t.Fatalf("expected latest progress 20, got %+v", latest)
	}

	recent, err := st.ListSnapshots(ctx, model.HistoryFilter{EnrollmentID: 3, Since: &midnight})
	if err != nil {
		t.Fatalf("list snapshots since: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 snapshots since midnight, got %d", len(recent))
	}
}
