package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/report"
)

var rsvpStatus string

func newChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children",
		Short: "List children linked to this parent account",
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
			children, err := a.client.Children(cmd.Context())
			if err != nil {
				return err
			}
			return report.RenderChildren(cmd.OutOrStdout(), children)
		},
	}
}

func newChildProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "child-progress <child-id>",
		Short: "Show a child's enrollments with progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			childID, err := parseID(args[0], "child")
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
			enrollments, err := a.client.ChildEnrollments(cmd.Context(), childID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.RenderEnrollments(out, report.Build(enrollments, a.policy), useColor(out))
		},
	}
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			events, err := a.client.ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			return report.RenderEvents(cmd.OutOrStdout(), events, time.Now())
		},
	}
}

func newRSVPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsvp <event-id>",
		Short: "Answer an event invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID(args[0], "event")
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
			if err := a.client.RSVP(cmd.Context(), eventID, rsvpStatus); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "RSVP for event %d: %s\n", eventID, rsvpStatus)
			return err
		},
	}
	cmd.Flags().StringVar(&rsvpStatus, "status", model.RSVPGoing, "going|maybe|not_going")
	return cmd
}
