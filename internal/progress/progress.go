// Package progress derives course progress and its display band from enrollment records.
package progress

import (
	"fmt"
	"math"
	"strings"

	"github.com/verte-zerg/madrasa/internal/model"
)

// Policy selects what non-memorization courses report when no attendance data exists.
type Policy int

const (
	// FallbackZero reports 0 when attendance data is absent.
	FallbackZero Policy = iota
	// FallbackCompletion reuses the completion percentage when attendance data is absent.
	FallbackCompletion
)

// ParsePolicy parses a config or flag value. The empty string selects FallbackZero.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return FallbackZero, nil
	case "completion":
		return FallbackCompletion, nil
	default:
		return FallbackZero, fmt.Errorf("unknown fallback policy %q (want zero or completion)", s)
	}
}

func (p Policy) String() string {
	if p == FallbackCompletion {
		return "completion"
	}
	return "zero"
}

// Category returns the normalized course category of an enrollment.
func Category(e model.Enrollment) string {
	category := strings.TrimSpace(e.CourseType)
	if category == "" {
		category = strings.TrimSpace(e.CourseTypeName)
	}
	return strings.ToLower(category)
}

// IsMemorization reports whether progress is tracked by completion percentage.
func IsMemorization(e model.Enrollment) bool {
	return Category(e) == model.CategoryMemorization
}

// Compute returns the course progress of an enrollment as a percentage in [0, 100].
func Compute(e model.Enrollment, p Policy) int {
	if IsMemorization(e) {
		return completion(e)
	}
	if rate, ok := e.AttendanceRate.Get(); ok {
		return clamp(round(rate))
	}
	if pct, ok := e.AttendancePercentage.Get(); ok {
		return clamp(round(pct))
	}
	total := e.TotalAttendanceRecords.Or(e.TotalSessions.Or(0))
	if total > 0 {
		present := e.PresentCount.Or(0)
		return clamp(round(present / total * 100))
	}
	if p == FallbackCompletion {
		return completion(e)
	}
	return 0
}

func completion(e model.Enrollment) int {
	return clamp(round(e.CompletionPercentage.Or(e.Progress.Or(0))))
}

// round rounds half up, so 62.5 becomes 63 and -0.5 becomes 0.
func round(v float64) int {
	r := math.Floor(v + 0.5)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	if r < math.MinInt32 {
		return math.MinInt32
	}
	return int(r)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
