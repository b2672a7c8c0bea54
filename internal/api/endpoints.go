package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/verte-zerg/madrasa/internal/model"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token        string     `json:"token"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         model.User `json:"user"`
}

func (r tokenResponse) state() model.SessionState {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}
	return model.SessionState{AccessToken: access, RefreshToken: r.RefreshToken, User: r.User}
}

// Login signs in and stores the returned tokens in the session.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	req := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.validate.Struct(req); err != nil {
		return model.User{}, validationError("login", err)
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp, false); err != nil {
		return model.User{}, err
	}
	st := resp.state()
	if st.AccessToken == "" {
		return model.User{}, fmt.Errorf("login response carried no token")
	}
	if err := c.session.Set(ctx, st); err != nil {
		return model.User{}, err
	}
	return st.User, nil
}

// Logout forgets the session locally. The backend keeps no client state to revoke.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx)
}

// RefreshToken implements Refresher against POST /api/auth/refresh.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (model.SessionState, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", body, &resp, false); err != nil {
		return model.SessionState{}, err
	}
	st := resp.state()
	if st.AccessToken == "" {
		return model.SessionState{}, fmt.Errorf("refresh response carried no token")
	}
	return st, nil
}

// ListCourses returns the course catalog.
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	return getList[model.Course](ctx, c, "/api/courses", "courses")
}

// MyEnrollments returns the signed-in student's enrollments.
func (c *Client) MyEnrollments(ctx context.Context) ([]model.Enrollment, error) {
	return getList[model.Enrollment](ctx, c, "/api/enrollment/my-enrollments", "enrollments")
}

// Enroll registers the signed-in student in a course.
func (c *Client) Enroll(ctx context.Context, courseID int64) (model.Enrollment, error) {
	if courseID <= 0 {
		return model.Enrollment{}, fmt.Errorf("invalid course id %d", courseID)
	}
	var raw json.RawMessage
	if err := c.Post(ctx, "/api/enrollment/enroll", map[string]int64{"course_id": courseID}, &raw); err != nil {
		return model.Enrollment{}, err
	}
	return decodeOne[model.Enrollment](raw, "enrollment")
}

// DropEnrollment withdraws from a course.
func (c *Client) DropEnrollment(ctx context.Context, enrollmentID int64) error {
	if enrollmentID <= 0 {
		return fmt.Errorf("invalid enrollment id %d", enrollmentID)
	}
	return c.Patch(ctx, fmt.Sprintf("/api/enrollment/%d/drop", enrollmentID), nil, nil)
}

// TeacherCourses returns the courses taught by the signed-in teacher.
func (c *Client) TeacherCourses(ctx context.Context) ([]model.Course, error) {
	return getList[model.Course](ctx, c, "/api/teacher/courses", "courses")
}

// CourseStudents returns the roster of a course.
func (c *Client) CourseStudents(ctx context.Context, courseID int64) ([]model.Student, error) {
	if courseID <= 0 {
		return nil, fmt.Errorf("invalid course id %d", courseID)
	}
	return getList[model.Student](ctx, c, fmt.Sprintf("/api/teacher/courses/%d/students", courseID), "students")
}

// MarkAttendance submits attendance for one course session.
func (c *Client) MarkAttendance(ctx context.Context, sheet model.AttendanceSheet) error {
	if err := c.validate.Struct(sheet); err != nil {
		return validationError("attendance", err)
	}
	return c.Post(ctx, "/api/teacher/attendance", sheet, nil)
}

// Children returns the students linked to the signed-in parent.
func (c *Client) Children(ctx context.Context) ([]model.Child, error) {
	return getList[model.Child](ctx, c, "/api/parent-progress/children", "children")
}

// ChildEnrollments returns the enrollments of one child.
func (c *Client) ChildEnrollments(ctx context.Context, childID int64) ([]model.Enrollment, error) {
	if childID <= 0 {
		return nil, fmt.Errorf("invalid child id %d", childID)
	}
	return getList[model.Enrollment](ctx, c, fmt.Sprintf("/api/parent-progress/children/%d/enrollments", childID), "enrollments")
}

// ListEvents returns upcoming events.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	return getList[model.Event](ctx, c, "/api/events", "events")
}

type rsvpRequest struct {
	Status string `json:"status" validate:"required,oneof=going maybe not_going"`
}

// RSVP answers an event invitation.
func (c *Client) RSVP(ctx context.Context, eventID int64, status string) error {
	if eventID <= 0 {
		return fmt.Errorf("invalid event id %d", eventID)
	}
	req := rsvpRequest{Status: strings.ToLower(strings.TrimSpace(status))}
	if err := c.validate.Struct(req); err != nil {
		return validationError("rsvp", err)
	}
	return c.Post(ctx, fmt.Sprintf("/api/events/%d/rsvp", eventID), req, nil)
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/api/profile", &raw); err != nil {
		return model.Profile{}, err
	}
	return decodeOne[model.Profile](raw, "profile")
}

// UpdateProfile saves profile changes and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, u model.ProfileUpdate) (model.Profile, error) {
	if u == (model.ProfileUpdate{}) {
		return model.Profile{}, fmt.Errorf("nothing to update")
	}
	if err := c.validate.Struct(u); err != nil {
		return model.Profile{}, validationError("profile", err)
	}
	if err := c.Put(ctx, "/api/profile", u, nil); err != nil {
		return model.Profile{}, err
	}
	return c.Profile(ctx)
}

func getList[T any](ctx context.Context, c *Client, path string, keys ...string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}
