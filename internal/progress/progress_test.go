package progress

import (
	"math"
	"testing"

	"github.com/verte-zerg/madrasa/internal/model"
)

func TestComputeScenarios(t *testing.T) {
	cases := []struct {
		name string
		in   model.Enrollment
		want int
		band Band
	}{
		{
			name: "memorization uses completion",
			in:   model.Enrollment{CourseType: "memorization", CompletionPercentage: model.Num(62)},
			want: 62,
			band: BandWarning,
		},
		{
			name: "attendance ratio",
			in:   model.Enrollment{CourseType: "quran_recitation", PresentCount: model.Num(8), TotalAttendanceRecords: model.Num(10)},
			want: 80,
			band: BandSuccess,
		},
		{
			name: "no sessions",
			in:   model.Enrollment{CourseType: "tajweed", PresentCount: model.Num(0), TotalAttendanceRecords: model.Num(0)},
			want: 0,
			band: BandError,
		},
		{
			name: "precomputed rate",
			in:   model.Enrollment{CourseType: "fiqh", AttendanceRate: model.Num(91.4)},
			want: 91,
			band: BandSuccess,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.in, FallbackZero)
			if got.Progress != tc.want {
				t.Fatalf("progress: got %d, want %d", got.Progress, tc.want)
			}
			if got.Band != tc.band {
				t.Fatalf("band: got %s, want %s", got.Band, tc.band)
			}
		})
	}
}

func TestMemorizationIgnoresAttendance(t *testing.T) {
	for _, v := range []float64{-20, 0, 33.5, 62.49, 99.5, 140} {
		e := model.Enrollment{
			CourseTypeName:         "Memorization",
			CompletionPercentage:   model.Num(v),
			AttendanceRate:         model.Num(10),
			PresentCount:           model.Num(1),
			TotalAttendanceRecords: model.Num(2),
		}
		want := int(math.Floor(v + 0.5))
		if want < 0 {
			want = 0
		}
		if want > 100 {
			want = 100
		}
		if got := Compute(e, FallbackZero); got != want {
			t.Fatalf("completion %v: got %d, want %d", v, got, want)
		}
	}
}

func TestMemorizationFallsBackToProgressField(t *testing.T) {
	e := model.Enrollment{CourseType: "memorization", Progress: model.Num(41)}
	if got := Compute(e, FallbackZero); got != 41 {
		t.Fatalf("got %d, want 41", got)
	}
	if got := Compute(model.Enrollment{CourseType: "memorization"}, FallbackZero); got != 0 {
		t.Fatalf("got %d, want 0 for empty memorization record", got)
	}
}

func TestAttendanceRatioMatchesRounding(t *testing.T) {
	for total := 1; total <= 30; total++ {
		for present := 0; present <= total; present++ {
			e := model.Enrollment{
				CourseType:             "arabic",
				PresentCount:           model.Num(float64(present)),
				TotalAttendanceRecords: model.Num(float64(total)),
			}
			want := int(math.Floor(float64(present)/float64(total)*100 + 0.5))
			if got := Compute(e, FallbackZero); got != want {
				t.Fatalf("%d/%d: got %d, want %d", present, total, got, want)
			}
		}
	}
}

func TestFullAttendanceIsHundred(t *testing.T) {
	e := model.Enrollment{CourseType: "seerah", PresentCount: model.Num(7), TotalSessions: model.Num(7)}
	if got := Compute(e, FallbackZero); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
}

func TestRatePrecedence(t *testing.T) {
	e := model.Enrollment{
		CourseType:             "aqeedah",
		AttendanceRate:         model.Num(40),
		AttendancePercentage:   model.Num(90),
		PresentCount:           model.Num(9),
		TotalAttendanceRecords: model.Num(10),
	}
	if got := Compute(e, FallbackZero); got != 40 {
		t.Fatalf("attendance_rate should win, got %d", got)
	}
	e.AttendanceRate = model.Number{}
	if got := Compute(e, FallbackZero); got != 90 {
		t.Fatalf("attendance_percentage should win, got %d", got)
	}
	e.AttendancePercentage = model.Num(math.NaN())
	if got := Compute(e, FallbackZero); got != 90 {
		t.Fatalf("ratio expected after NaN percentage, got %d", got)
	}
}

func TestOutOfRangeIsClamped(t *testing.T) {
	over := model.Enrollment{CourseType: "fiqh", PresentCount: model.Num(12), TotalAttendanceRecords: model.Num(10)}
	if got := Compute(over, FallbackZero); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
	under := model.Enrollment{CourseType: "fiqh", AttendanceRate: model.Num(-3)}
	if got := Compute(under, FallbackZero); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestFallbackPolicy(t *testing.T) {
	e := model.Enrollment{CourseType: "tajweed", CompletionPercentage: model.Num(55), TotalAttendanceRecords: model.Num(0)}
	if got := Compute(e, FallbackZero); got != 0 {
		t.Fatalf("zero policy: got %d, want 0", got)
	}
	if got := Compute(e, FallbackCompletion); got != 55 {
		t.Fatalf("completion policy: got %d, want 55", got)
	}
	withData := e
	withData.PresentCount = model.Num(1)
	withData.TotalAttendanceRecords = model.Num(4)
	if got := Compute(withData, FallbackCompletion); got != 25 {
		t.Fatalf("attendance data must win over fallback, got %d", got)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	e := model.Enrollment{CourseType: "hadith", AttendancePercentage: model.Num(66.6)}
	first := Compute(e, FallbackZero)
	second := Compute(e, FallbackZero)
	if first != second || first != 67 {
		t.Fatalf("got %d then %d, want 67 twice", first, second)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": FallbackZero, "zero": FallbackZero, " Completion ": FallbackCompletion} {
		got, err := ParsePolicy(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %s, want %s", in, got, want)
		}
	}
	if _, err := ParsePolicy("strict"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
