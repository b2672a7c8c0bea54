package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNumberDecodesBackendShapes(t *testing.T) {
	var e Enrollment
	payload := `{
		"course_type": "fiqh",
		"attendance_rate": "91.40",
		"present_count": 8,
		"total_attendance_records": null,
		"completion_percentage": ""
	}`
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := e.AttendanceRate.Get(); !ok || v != 91.4 {
		t.Fatalf("attendance_rate: got %v, %v", v, ok)
	}
	if v, ok := e.PresentCount.Get(); !ok || v != 8 {
		t.Fatalf("present_count: got %v, %v", v, ok)
	}
	if e.TotalAttendanceRecords.Valid {
		t.Fatalf("expected null total_attendance_records to be absent")
	}
	if e.CompletionPercentage.Valid {
		t.Fatalf("expected empty completion_percentage to be absent")
	}
	if e.Progress.Valid {
		t.Fatalf("expected missing progress to be absent")
	}
}

func TestNumberRejectsGarbage(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte(`"abc"`), &n); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestNumberNonFiniteIsAbsent(t *testing.T) {
	if _, ok := Num(math.NaN()).Get(); ok {
		t.Fatalf("NaN should be absent")
	}
	if got := Num(math.Inf(1)).Or(3); got != 3 {
		t.Fatalf("expected fallback for +Inf, got %v", got)
	}
}
