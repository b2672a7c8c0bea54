package progress

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/madrasa/internal/model"
)

// Band is the severity band used to color a progress value.
type Band int

const (
	BandError Band = iota
	BandWarning
	BandSuccess
)

const (
	successThreshold = 75
	warningThreshold = 50
)

// BandFor maps a progress percentage to its band.
func BandFor(progress int) Band {
	switch {
	case progress >= successThreshold:
		return BandSuccess
	case progress >= warningThreshold:
		return BandWarning
	default:
		return BandError
	}
}

func (b Band) String() string {
	switch b {
	case BandSuccess:
		return "success"
	case BandWarning:
		return "warning"
	default:
		return "error"
	}
}

// Color returns the display color of the band.
func (b Band) Color() lipgloss.Color {
	switch b {
	case BandSuccess:
		return lipgloss.Color("#52C41A")
	case BandWarning:
		return lipgloss.Color("#FAAD14")
	default:
		return lipgloss.Color("#FF4D4F")
	}
}

// Result is a computed progress value and its band.
type Result struct {
	Progress int
	Band     Band
}

// Evaluate computes progress and band for one enrollment.
func Evaluate(e model.Enrollment, p Policy) Result {
	v := Compute(e, p)
	return Result{Progress: v, Band: BandFor(v)}
}

// Summary aggregates progress across enrollments.
type Summary struct {
	Total        int
	ByStatus     map[string]int
	ByBand       map[Band]int
	MeanProgress int
}

// Summarize aggregates progress for a set of enrollments.
func Summarize(enrollments []model.Enrollment, p Policy) Summary {
	s := Summary{
		Total:    len(enrollments),
		ByStatus: map[string]int{},
		ByBand:   map[Band]int{},
	}
	if len(enrollments) == 0 {
		return s
	}
	sum := 0
	for _, e := range enrollments {
		r := Evaluate(e, p)
		sum += r.Progress
		s.ByBand[r.Band]++
		status := e.Status
		if status == "" {
			status = model.StatusActive
		}
		s.ByStatus[status]++
	}
	s.MeanProgress = round(float64(sum) / float64(len(enrollments)))
	return s
}
