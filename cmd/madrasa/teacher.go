package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/report"
)

var attendanceStatuses = []string{
	model.AttendancePresent,
	model.AttendanceAbsent,
	model.AttendanceLate,
	model.AttendanceExcused,
}

var (
	attendDate    string
	attendRest    string
	attendPresent []int64
	attendAbsent  []int64
	attendLate    []int64
	attendExcused []int64
)

func newTeacherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teacher",
		Short: "Teacher tools",
	}
	cmd.AddCommand(newTeacherCoursesCmd())
	cmd.AddCommand(newTeacherRosterCmd())
	cmd.AddCommand(newTeacherAttendCmd())
	return cmd
}

func newTeacherCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the courses I teach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSignedIn(); err != nil {
				return err
			}
			courses, err := a.client.TeacherCourses(cmd.Context())
			if err != nil {
				return err
			}
			return report.RenderCourses(cmd.OutOrStdout(), courses)
		},
	}
}

func newTeacherRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster <course-id>",
		Short: "Show students of a course with progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := parseID(args[0], "course")
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSignedIn(); err != nil {
				return err
			}
			students, err := a.client.CourseStudents(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			return report.RenderRoster(cmd.OutOrStdout(), students, a.policy)
		},
	}
}

func newTeacherAttendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attend <course-id>",
		Short: "Record attendance for a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runTeacherAttendCmd,
	}
	cmd.Flags().StringVar(&attendDate, "date", "", "session date (YYYY-MM-DD, default: today)")
	cmd.Flags().Int64SliceVar(&attendPresent, "present", nil, "student ids marked present")
	cmd.Flags().Int64SliceVar(&attendAbsent, "absent", nil, "student ids marked absent")
	cmd.Flags().Int64SliceVar(&attendLate, "late", nil, "student ids marked late")
	cmd.Flags().Int64SliceVar(&attendExcused, "excused", nil, "student ids marked excused")
	cmd.Flags().StringVar(&attendRest, "rest", "", "status for every other student on the roster")
	return cmd
}

func runTeacherAttendCmd(cmd *cobra.Command, args []string) error {
	courseID, err := parseID(args[0], "course")
	if err != nil {
		return err
	}
	date := strings.TrimSpace(attendDate)
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	marks := map[string][]int64{
		model.AttendancePresent: attendPresent,
		model.AttendanceAbsent:  attendAbsent,
		model.AttendanceLate:    attendLate,
		model.AttendanceExcused: attendExcused,
	}
	sheet, err := buildAttendanceSheet(courseID, date, marks)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	if attendRest != "" {
		students, err := a.client.CourseStudents(cmd.Context(), courseID)
		if err != nil {
			return err
		}
		sheet, err = fillRest(sheet, students, attendRest)
		if err != nil {
			return err
		}
	}
	if err := a.client.MarkAttendance(cmd.Context(), sheet); err != nil {
		return err
	}

	counts := map[string]int{}
	for _, r := range sheet.Records {
		counts[r.Status]++
	}
	parts := make([]string, 0, len(attendanceStatuses))
	for _, status := range attendanceStatuses {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", status, counts[status]))
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Attendance saved for %s: %s\n", sheet.SessionDate, strings.Join(parts, ", "))
	return err
}

// buildAttendanceSheet turns per-status id lists into one record per student.
func buildAttendanceSheet(courseID int64, date string, marks map[string][]int64) (model.AttendanceSheet, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return model.AttendanceSheet{}, fmt.Errorf("invalid --date value %q (want YYYY-MM-DD)", date)
	}
	seen := map[int64]string{}
	var records []model.AttendanceMark
	for _, status := range attendanceStatuses {
		for _, id := range marks[status] {
			if id <= 0 {
				return model.AttendanceSheet{}, fmt.Errorf("invalid student id %d", id)
			}
			if prev, ok := seen[id]; ok {
				return model.AttendanceSheet{}, fmt.Errorf("student %d is marked both %s and %s", id, prev, status)
			}
			seen[id] = status
			records = append(records, model.AttendanceMark{StudentID: id, Status: status})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StudentID < records[j].StudentID
	})
	return model.AttendanceSheet{CourseID: courseID, SessionDate: date, Records: records}, nil
}

// fillRest marks every roster student missing from the sheet with status.
func fillRest(sheet model.AttendanceSheet, students []model.Student, status string) (model.AttendanceSheet, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	known := false
	for _, s := range attendanceStatuses {
		if s == status {
			known = true
			break
		}
	}
	if !known {
		return sheet, fmt.Errorf("invalid --rest value %q (want %s)", status, strings.Join(attendanceStatuses, ", "))
	}
	marked := make(map[int64]struct{}, len(sheet.Records))
	for _, r := range sheet.Records {
		marked[r.StudentID] = struct{}{}
	}
	for _, s := range students {
		if _, ok := marked[s.ID]; ok || s.ID <= 0 {
			continue
		}
		marked[s.ID] = struct{}{}
		sheet.Records = append(sheet.Records, model.AttendanceMark{StudentID: s.ID, Status: status})
	}
	sort.Slice(sheet.Records, func(i, j int) bool {
		return sheet.Records[i].StudentID < sheet.Records[j].StudentID
	})
	return sheet, nil
}
