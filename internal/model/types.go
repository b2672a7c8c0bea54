// Package model defines shared data structures.
package model

import "time"

// Config defines client settings resolved from flags and the config file.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshSkew time.Duration
	Fallback    string
	LogLevel    string
}

// Enrollment status values reported by the backend.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDropped   = "dropped"
)

// CategoryMemorization is the course category tracked by completion percentage.
const CategoryMemorization = "memorization"

// Enrollment is a student's registration in a course. The backend uses
// several aliases for the same field depending on the endpoint, so every
// alias is kept and resolved by the progress package.
type Enrollment struct {
	ID             int64  `json:"id"`
	CourseID       int64  `json:"course_id"`
	CourseName     string `json:"course_name"`
	CourseType     string `json:"course_type"`
	CourseTypeName string `json:"course_type_name"`
	TeacherName    string `json:"teacher_name"`
	Status         string `json:"status"`

	CompletionPercentage Number `json:"completion_percentage"`
	Progress             Number `json:"progress"`

	PresentCount           Number `json:"present_count"`
	TotalAttendanceRecords Number `json:"total_attendance_records"`
	TotalSessions          Number `json:"total_sessions"`
	AttendanceRate         Number `json:"attendance_rate"`
	AttendancePercentage   Number `json:"attendance_percentage"`

	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

// Course is an entry of the course catalog.
type Course struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CourseType  string  `json:"course_type"`
	Description string  `json:"description"`
	TeacherName string  `json:"teacher_name"`
	Schedule    string  `json:"schedule"`
	Capacity    int     `json:"capacity"`
	Enrolled    int     `json:"enrolled_count"`
	Fee         float64 `json:"fee"`
	IsEnrolled  bool    `json:"is_enrolled"`
}

// Student is a roster entry as seen by a teacher.
type Student struct {
	ID           int64  `json:"id"`
	EnrollmentID int64  `json:"enrollment_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Enrollment
}

// Child is a student linked to a parent account.
type Child struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Grade string `json:"grade"`
}

// Event is a community or school event open for RSVP.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"start_date"`
	EndsAt      time.Time `json:"end_date"`
	Attendees   int       `json:"attendee_count"`
	MyRSVP      string    `json:"my_rsvp"`
}

// RSVP status values accepted by the events endpoint.
const (
	RSVPGoing    = "going"
	RSVPMaybe    = "maybe"
	RSVPNotGoing = "not_going"
)

// User identifies the signed-in account.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Profile is the editable account profile.
type Profile struct {
	User
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Bio     string `json:"bio"`
}

// ProfileUpdate carries the fields a user may change. Empty fields are left as is.
type ProfileUpdate struct {
	Name    string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,e164"`
	Address string `json:"address,omitempty" validate:"omitempty,max=255"`
	Bio     string `json:"bio,omitempty" validate:"omitempty,max=1000"`
}

// Attendance status values accepted by the teacher endpoint.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// AttendanceMark is the status of one student for one session.
type AttendanceMark struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
}

// AttendanceSheet records attendance for a course session.
type AttendanceSheet struct {
	CourseID    int64            `json:"course_id" validate:"required,gt=0"`
	SessionDate string           `json:"session_date" validate:"required,datetime=2006-01-02"`
	Records     []AttendanceMark `json:"records" validate:"required,min=1,dive"`
}

// Snapshot is a stored progress observation for an enrollment.
type Snapshot struct {
	EnrollmentID int64
	CourseName   string
	Category     string
	Progress     int
	Band         string
	TakenAt      time.Time
}

// SessionState is the persisted sign-in state of the client.
type SessionState struct {
	AccessToken  string
	RefreshToken string
	User         User
	SavedAt      time.Time
}

// HistoryFilter narrows the progress snapshots returned for reporting.
type HistoryFilter struct {
	EnrollmentID int64
	Since        *time.Time
	Last         int
}
