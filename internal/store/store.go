// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/madrasa/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout keeps stored timestamps fixed-width so text order is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for the sign-in session and progress snapshots.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			user_name TEXT NOT NULL,
			user_email TEXT NOT NULL,
			user_role TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress_snapshots (
			id INTEGER PRIMARY KEY,
			enrollment_id INTEGER NOT NULL,
			course_name TEXT NOT NULL,
			category TEXT NOT NULL,
			progress INTEGER NOT NULL,
			band TEXT NOT NULL,
			taken_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_enrollment ON progress_snapshots(enrollment_id, taken_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadSession returns the persisted session, or ok=false when signed out.
func (s *Store) LoadSession(ctx context.Context) (model.SessionState, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, user_id, user_name, user_email, user_role, saved_at
		 FROM session WHERE id = 1`)
	var st model.SessionState
	var savedAt string
	err := row.Scan(&st.AccessToken, &st.RefreshToken, &st.User.ID, &st.User.Name, &st.User.Email, &st.User.Role, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionState{}, false, nil
	}
	if err != nil {
		return model.SessionState{}, false, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return model.SessionState{}, false, err
	}
	st.SavedAt = parsed
	return st, true, nil
}

// SaveSession replaces the persisted session.
func (s *Store) SaveSession(ctx context.Context, st model.SessionState) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, access_token, refresh_token, user_id, user_name, user_email, user_role, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			user_role = excluded.user_role,
			saved_at = excluded.saved_at`,
		st.AccessToken,
		st.RefreshToken,
		st.User.ID,
		st.User.Name,
		st.User.Email,
		st.User.Role,
		formatTime(st.SavedAt),
	)
	return err
}

// ClearSession removes the persisted session.
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	return err
}

// InsertSnapshots stores progress observations in one transaction.
func (s *Store) InsertSnapshots(ctx context.Context, snaps []model.Snapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO progress_snapshots (enrollment_id, course_name, category, progress, band, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, snap := range snaps {
		takenAt := snap.TakenAt
		if takenAt.IsZero() {
			takenAt = time.Now()
		}
		if _, err = stmt.ExecContext(ctx,
			snap.EnrollmentID,
			snap.CourseName,
			snap.Category,
			snap.Progress,
			snap.Band,
			formatTime(takenAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSnapshots returns snapshots for one enrollment in chronological order.
func (s *Store) ListSnapshots(ctx context.Context, filter model.HistoryFilter) ([]model.Snapshot, error) {
	clauses := []string{"enrollment_id = ?"}
	args := []any{filter.EnrollmentID}
	if filter.Since != nil {
		clauses = append(clauses, "taken_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	query := fmt.Sprintf(`SELECT enrollment_id, course_name, category, progress, band, taken_at
		FROM progress_snapshots
		WHERE %s
		ORDER BY taken_at ASC, id ASC`, strings.Join(clauses, " AND "))
	snaps, err := s.querySnapshots(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if filter.Last > 0 && len(snaps) > filter.Last {
		snaps = snaps[len(snaps)-filter.Last:]
	}
	return snaps, nil
}

// LatestSnapshots returns the most recent snapshot of every known enrollment.
func (s *Store) LatestSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	query := `SELECT p.enrollment_id, p.course_name, p.category, p.progress, p.band, p.taken_at
		FROM progress_snapshots p
		WHERE p.id = (
			SELECT q.id FROM progress_snapshots q
			WHERE q.enrollment_id = p.enrollment_id
			ORDER BY q.taken_at DESC, q.id DESC
			LIMIT 1
		)
		ORDER BY p.course_name ASC, p.enrollment_id ASC`
	return s.querySnapshots(ctx, query)
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var takenAt string
		if err := rows.Scan(&snap.EnrollmentID, &snap.CourseName, &snap.Category, &snap.Progress, &snap.Band, &takenAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, err
		}
		snap.TakenAt = parsed
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
