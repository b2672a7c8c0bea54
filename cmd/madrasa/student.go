package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/madrasa/internal/api"
	"github.com/verte-zerg/madrasa/internal/dashboard"
	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/report"
)

var (
	historySince string
	historyLast  int

	enrollmentsNoRecord bool
)

func newCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the course catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			courses, err := a.client.ListCourses(cmd.Context())
			if err != nil {
				return err
			}
			return report.RenderCourses(cmd.OutOrStdout(), courses)
		},
	}
}

func newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <course-id>",
		Short: "Enroll in a course",
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
			e, err := a.client.Enroll(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Enrolled in course %d", courseID)
			if e.ID != 0 {
				msg += fmt.Sprintf(" (enrollment %d)", e.ID)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <enrollment-id>",
		Short: "Drop an enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enrollmentID, err := parseID(args[0], "enrollment")
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
			if err := a.client.DropEnrollment(cmd.Context(), enrollmentID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Dropped enrollment %d\n", enrollmentID)
			return err
		},
	}
}

func newEnrollmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrollments",
		Short: "Show my enrollments with progress",
		Args:  cobra.NoArgs,
		RunE:  runEnrollmentsCmd,
	}
	cmd.Flags().BoolVar(&enrollmentsNoRecord, "no-record", false, "do not store a progress snapshot")
	return cmd
}

func runEnrollmentsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	enrollments, err := a.client.MyEnrollments(cmd.Context())
	if err != nil {
		return err
	}
	rep := report.Build(enrollments, a.policy)
	if !enrollmentsNoRecord {
		if err := a.store.InsertSnapshots(cmd.Context(), rep.Snapshots(time.Now())); err != nil {
			a.logger.Warn("failed to record progress", "err", err)
		}
	}
	out := cmd.OutOrStdout()
	return report.RenderEnrollments(out, rep, useColor(out))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [enrollment-id]",
		Short: "Show recorded progress over time",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N snapshots")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		snaps, err := a.store.LatestSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		return report.RenderLatest(out, snaps, time.Now())
	}

	enrollmentID, err := parseID(args[0], "enrollment")
	if err != nil {
		return err
	}
	snaps, err := a.store.ListSnapshots(cmd.Context(), model.HistoryFilter{
		EnrollmentID: enrollmentID,
		Since:        sinceTime,
		Last:         historyLast,
	})
	if err != nil {
		return err
	}
	return report.RenderHistory(out, snaps, time.Now())
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE:  runDashboardCmd,
	}
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	m := dashboard.NewModel(a.client, a.store, a.policy)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	if m.SignedOut() {
		return fmt.Errorf("session expired: %w", api.ErrUnauthorized)
	}
	return nil
}
