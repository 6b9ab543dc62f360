package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
)

func TestParseDue(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"2026-03-01T08:00:00Z", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), false},
		{"2026-03-01 15:00", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), false},
		{"tomorrow", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseDue(tt.raw, jakarta)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseDue(%q) error = %v", tt.raw, err)
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseDue(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestBuildTask(t *testing.T) {
	task, err := buildTask("log_info", `{"message":"hi"}`, "2026-03-01 15:00", "onetime", "", 2, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.ScheduledTaskStatusActive || task.MaxAttempt != 2 || task.Arguments["message"] != "hi" {
		t.Errorf("task = %+v", task)
	}

	if _, err := buildTask("log_info", `not json`, "2026-03-01 15:00", "onetime", "", 1, time.UTC); err == nil {
		t.Error("expected invalid JSON to fail")
	}
	if _, err := buildTask("log_info", `{}`, "2026-03-01 15:00", "recurring", "", 1, time.UTC); err == nil {
		t.Error("expected recurring without a rule to fail")
	}
	if _, err := buildTask("log_info", `{}`, "2026-03-01 15:00", "weekly", "", 1, time.UTC); err == nil {
		t.Error("expected unknown type to fail")
	}
}

func TestTierRecord(t *testing.T) {
	rec := tierRecord(catalog.Tier{Service: catalog.ServiceVAP, ProgramType: "vap", AdvanceFee: decimal.NewFromInt(450000)})
	if rec.Service != "vap" || !rec.IsActive || !rec.AdvanceFee.Equal(decimal.NewFromInt(450000)) {
		t.Errorf("record = %+v", rec)
	}
}
