// Package report renders enrollments, progress history, and other backend
// listings as plain text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/progress"
)

const (
	sparkChars   = " .:-=+*#%@"
	barWidth     = 20
	barFilled    = "█"
	barEmpty     = "░"
	untitledName = "(untitled course)"
)

// Row is one enrollment with its computed progress.
type Row struct {
	Enrollment model.Enrollment
	Result     progress.Result
}

// Report holds the computed rows and summary for a set of enrollments.
type Report struct {
	Rows    []Row
	Summary progress.Summary
	Policy  progress.Policy
}

// Build computes progress for every enrollment under one policy. Rows are
// ordered by status (active first) and then course name.
func Build(enrollments []model.Enrollment, p progress.Policy) Report {
	rows := make([]Row, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, Row{Enrollment: e, Result: progress.Evaluate(e, p)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := statusRank(rows[i].Enrollment.Status), statusRank(rows[j].Enrollment.Status)
		if si != sj {
			return si < sj
		}
		return strings.ToLower(courseName(rows[i].Enrollment)) < strings.ToLower(courseName(rows[j].Enrollment))
	})
	return Report{
		Rows:    rows,
		Summary: progress.Summarize(enrollments, p),
		Policy:  p,
	}
}

// Snapshots converts the report into progress observations taken at t.
func (r Report) Snapshots(t time.Time) []model.Snapshot {
	snaps := make([]model.Snapshot, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Enrollment.ID == 0 {
			continue
		}
		snaps = append(snaps, model.Snapshot{
			EnrollmentID: row.Enrollment.ID,
			CourseName:   courseName(row.Enrollment),
			Category:     progress.Category(row.Enrollment),
			Progress:     row.Result.Progress,
			Band:         row.Result.Band.String(),
			TakenAt:      t,
		})
	}
	return snaps
}

// RenderEnrollments prints the enrollment table followed by the summary.
func RenderEnrollments(w io.Writer, r Report, useColor bool) error {
	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No enrollments found.")
		return err
	}
	headers := []string{"ID", "Course", "Type", "Status", "Progress", "", "Attendance"}
	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, []string{
			strconv.FormatInt(row.Enrollment.ID, 10),
			courseName(row.Enrollment),
			categoryLabel(row.Enrollment),
			statusLabel(row.Enrollment.Status),
			fmt.Sprintf("%d%%", row.Result.Progress),
			ProgressBar(row.Result.Progress, barWidth),
			attendanceLabel(row.Enrollment),
		})
	}
	style := func(ri, col int, padded string) string {
		if !useColor || (col != 4 && col != 5) {
			return padded
		}
		return lipgloss.NewStyle().Foreground(r.Rows[ri].Result.Band.Color()).Render(padded)
	}
	rightAlign := map[int]bool{0: true, 4: true}
	for _, line := range formatTable(headers, rows, rightAlign, style) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return RenderSummary(w, r.Summary)
}

// RenderSummary prints aggregate progress figures.
func RenderSummary(w io.Writer, s progress.Summary) error {
	if s.Total == 0 {
		_, err := fmt.Fprintln(w, "No enrollments found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Enrollments: %d (active %d, completed %d, dropped %d)",
			s.Total, s.ByStatus[model.StatusActive], s.ByStatus[model.StatusCompleted], s.ByStatus[model.StatusDropped]),
		fmt.Sprintf("Mean progress: %d%%", s.MeanProgress),
		fmt.Sprintf("On track: %d  Needs attention: %d  At risk: %d",
			s.ByBand[progress.BandSuccess], s.ByBand[progress.BandWarning], s.ByBand[progress.BandError]),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory prints progress snapshots of one enrollment as a sparkline and table.
func RenderHistory(w io.Writer, snaps []model.Snapshot, now time.Time) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No progress history recorded yet. Run: madrasa enrollments")
		return err
	}
	first, last := snaps[0], snaps[len(snaps)-1]
	values := make([]float64, len(snaps))
	for i, s := range snaps {
		values[i] = float64(s.Progress)
	}
	header := []string{
		fmt.Sprintf("%s (%s)", last.CourseName, last.Category),
		fmt.Sprintf("Snapshots: %d since %s", len(snaps), humanize.RelTime(first.TakenAt, now, "ago", "from now")),
		fmt.Sprintf("Trend: [%s] %d%% -> %d%% (%s)", Sparkline(values), first.Progress, last.Progress, signed(last.Progress-first.Progress)),
		"",
	}
	for _, line := range header {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			s.TakenAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d%%", s.Progress),
			s.Band,
		})
	}
	for _, line := range formatTable([]string{"Taken", "Progress", "Band"}, rows, map[int]bool{1: true}, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderLatest prints the most recent snapshot of every tracked enrollment.
func RenderLatest(w io.Writer, snaps []model.Snapshot, now time.Time) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No progress history recorded yet. Run: madrasa enrollments")
		return err
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			strconv.FormatInt(s.EnrollmentID, 10),
			s.CourseName,
			fmt.Sprintf("%d%%", s.Progress),
			s.Band,
			humanize.RelTime(s.TakenAt, now, "ago", "from now"),
		})
	}
	return writeTable(w, []string{"ID", "Course", "Progress", "Band", "Taken"}, rows, map[int]bool{0: true, 2: true})
}

// RenderCourses prints the course catalog.
func RenderCourses(w io.Writer, courses []model.Course) error {
	if len(courses) == 0 {
		_, err := fmt.Fprintln(w, "No courses found.")
		return err
	}
	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		seats := "-"
		if c.Capacity > 0 {
			seats = fmt.Sprintf("%d/%d", c.Enrolled, c.Capacity)
		}
		enrolled := ""
		if c.IsEnrolled {
			enrolled = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.CourseType,
			c.TeacherName,
			c.Schedule,
			seats,
			enrolled,
		})
	}
	return writeTable(w, []string{"ID", "Course", "Type", "Teacher", "Schedule", "Seats", "Enrolled"}, rows, map[int]bool{0: true, 5: true})
}

// RenderEvents prints events with relative start times.
func RenderEvents(w io.Writer, events []model.Event, now time.Time) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No upcoming events.")
		return err
	}
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartsAt.Before(sorted[j].StartsAt)
	})
	rows := make([][]string, 0, len(sorted))
	for _, e := range sorted {
		when := "-"
		if !e.StartsAt.IsZero() {
			when = fmt.Sprintf("%s (%s)", e.StartsAt.Local().Format("Mon 2 Jan 15:04"), humanize.RelTime(e.StartsAt, now, "ago", "from now"))
		}
		rsvp := e.MyRSVP
		if rsvp == "" {
			rsvp = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Title,
			when,
			e.Location,
			humanize.Comma(int64(e.Attendees)),
			rsvp,
		})
	}
	return writeTable(w, []string{"ID", "Event", "When", "Where", "Going", "RSVP"}, rows, map[int]bool{0: true, 4: true})
}

// RenderRoster prints a teacher's course roster with each student's progress.
func RenderRoster(w io.Writer, students []model.Student, p progress.Policy) error {
	if len(students) == 0 {
		_, err := fmt.Fprintln(w, "No students enrolled.")
		return err
	}
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		res := progress.Evaluate(s.Enrollment, p)
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			statusLabel(s.Status),
			fmt.Sprintf("%d%%", res.Progress),
			res.Band.String(),
			attendanceLabel(s.Enrollment),
		})
	}
	return writeTable(w, []string{"ID", "Student", "Status", "Progress", "Band", "Attendance"}, rows, map[int]bool{0: true, 3: true})
}

// RenderChildren prints the students linked to a parent account.
func RenderChildren(w io.Writer, children []model.Child) error {
	if len(children) == 0 {
		_, err := fmt.Fprintln(w, "No linked children.")
		return err
	}
	rows := make([][]string, 0, len(children))
	for _, c := range children {
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Name, c.Grade, c.Email})
	}
	return writeTable(w, []string{"ID", "Name", "Grade", "Email"}, rows, map[int]bool{0: true})
}

// RenderProfile prints the account profile.
func RenderProfile(w io.Writer, p model.Profile) error {
	fields := [][]string{
		{"Name", p.Name},
		{"Email", p.Email},
		{"Role", p.Role},
		{"Phone", p.Phone},
		{"Address", p.Address},
		{"Bio", p.Bio},
	}
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			continue
		}
		rows = append(rows, []string{f[0] + ":", f[1]})
	}
	return writeTable(w, nil, rows, nil)
}

// ProgressBar renders a fixed-width bar for a percentage.
func ProgressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(math.Floor(float64(pct)*float64(width)/100 + 0.5))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// Sparkline renders a single-line ASCII sparkline on a fixed 0-100 scale.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	var b strings.Builder
	for _, v := range values {
		pos := v / 100
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func courseName(e model.Enrollment) string {
	if name := strings.TrimSpace(e.CourseName); name != "" {
		return name
	}
	return untitledName
}

func categoryLabel(e model.Enrollment) string {
	if c := progress.Category(e); c != "" {
		return c
	}
	return "-"
}

func statusLabel(status string) string {
	if status == "" {
		return model.StatusActive
	}
	return status
}

func attendanceLabel(e model.Enrollment) string {
	if progress.IsMemorization(e) {
		return "-"
	}
	total := e.TotalAttendanceRecords.Or(e.TotalSessions.Or(0))
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", int(e.PresentCount.Or(0)), int(total))
}

func statusRank(status string) int {
	switch statusLabel(status) {
	case model.StatusActive:
		return 0
	case model.StatusCompleted:
		return 1
	default:
		return 2
	}
}

func signed(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
