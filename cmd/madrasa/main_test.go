package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/madrasa/internal/api"
	"github.com/verte-zerg/madrasa/internal/config"
	"github.com/verte-zerg/madrasa/internal/model"
)

func TestBuildAttendanceSheet(t *testing.T) {
	sheet, err := buildAttendanceSheet(4, "2026-10-19", map[string][]int64{
		model.AttendancePresent: {3, 1},
		model.AttendanceLate:    {2},
	})
	if err != nil {
		t.Fatalf("build sheet: %v", err)
	}
	if sheet.CourseID != 4 || sheet.SessionDate != "2026-10-19" {
		t.Fatalf("unexpected sheet header: %+v", sheet)
	}
	want := []model.AttendanceMark{
		{StudentID: 1, Status: model.AttendancePresent},
		{StudentID: 2, Status: model.AttendanceLate},
		{StudentID: 3, Status: model.AttendancePresent},
	}
	if len(sheet.Records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(sheet.Records))
	}
	for i := range want {
		if sheet.Records[i] != want[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, sheet.Records[i], want[i])
		}
	}
}

func TestBuildAttendanceSheetRejectsConflicts(t *testing.T) {
	_, err := buildAttendanceSheet(4, "2026-10-19", map[string][]int64{
		model.AttendancePresent: {1},
		model.AttendanceAbsent:  {1},
	})
	if err == nil || !strings.Contains(err.Error(), "marked both present and absent") {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if _, err := buildAttendanceSheet(4, "19.10.2026", nil); err == nil {
		t.Fatalf("expected date error")
	}
	if _, err := buildAttendanceSheet(4, "2026-10-19", map[string][]int64{model.AttendanceLate: {0}}); err == nil {
		t.Fatalf("expected id error")
	}
}

func TestFillRest(t *testing.T) {
	sheet := model.AttendanceSheet{
		CourseID:    4,
		SessionDate: "2026-10-19",
		Records:     []model.AttendanceMark{{StudentID: 2, Status: model.AttendanceAbsent}},
	}
	students := []model.Student{{ID: 3}, {ID: 2}, {ID: 1}}
	got, err := fillRest(sheet, students, " Present ")
	if err != nil {
		t.Fatalf("fill rest: %v", err)
	}
	if len(got.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got.Records))
	}
	if got.Records[1].StudentID != 2 || got.Records[1].Status != model.AttendanceAbsent {
		t.Fatalf("explicit mark was overridden: %+v", got.Records[1])
	}
	if got.Records[0].Status != model.AttendancePresent || got.Records[2].Status != model.AttendancePresent {
		t.Fatalf("unexpected filled records: %+v", got.Records)
	}
	if _, err := fillRest(sheet, students, "asleep"); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := model.Config{
		BaseURL:     "https://api.example.org",
		Timeout:     time.Second,
		RefreshSkew: time.Minute,
		Fallback:    "completion",
		LogLevel:    "debug",
	}
	if err := validateConfig(valid); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	cases := map[string]func(*model.Config){
		"base-url":     func(c *model.Config) { c.BaseURL = "api.example.org" },
		"timeout":      func(c *model.Config) { c.Timeout = 0 },
		"refresh-skew": func(c *model.Config) { c.RefreshSkew = -time.Second },
		"fallback":     func(c *model.Config) { c.Fallback = "average" },
		"log-level":    func(c *model.Config) { c.LogLevel = "loud" },
	}
	for flag, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		err := validateConfig(cfg)
		if err == nil || !strings.Contains(err.Error(), "--"+flag) {
			t.Fatalf("%s: expected error naming the flag, got %v", flag, err)
		}
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := `[api]
base-url = "https://school.example.org/"
timeout = "30s"

[progress]
fallback = "completion"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"courses"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := cmd.ParseFlags([]string{"--timeout", "5s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.BaseURL != "https://school.example.org" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("flag should win over file, got %s", cfg.Timeout)
	}
	if cfg.RefreshSkew != defaultRefreshSkew {
		t.Fatalf("unexpected refresh skew %s", cfg.RefreshSkew)
	}
	if cfg.Fallback != "completion" {
		t.Fatalf("unexpected fallback %q", cfg.Fallback)
	}
}

func TestDefaultConfigTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template should decode: %v", err)
	}
	if cfg.API.BaseURL != nil || cfg.Progress.Fallback != nil {
		t.Fatalf("commented template should leave every value unset")
	}
}

func TestLoginHint(t *testing.T) {
	if loginHint(errNotSignedIn) == "" {
		t.Fatalf("expected hint for missing session")
	}
	wrapped := fmt.Errorf("load: %w", &api.Error{Status: 401, Err: api.ErrUnauthorized})
	if loginHint(wrapped) == "" {
		t.Fatalf("expected hint for expired session")
	}
	if loginHint(fmt.Errorf("boom")) != "" {
		t.Fatalf("unexpected hint for unrelated error")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID(" 42 ", "course"); err != nil || id != 42 {
		t.Fatalf("unexpected parse result %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID(bad, "course"); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
