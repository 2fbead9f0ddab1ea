package statusclass

import (
	"testing"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input    string
		expected model.StatusType
		ok       bool
	}{
		{"success", model.StatusSuccess, true}, {"Completed", model.StatusSuccess, true},
		{"done", model.StatusSuccess, true}, {"OK", model.StatusSuccess, true},
		{"error", model.StatusError, true}, {"FAILED", model.StatusError, true},
		{"failure", model.StatusError, true},
		{"warning", model.StatusWarning, true}, {"warn", model.StatusWarning, true},
		{"pending", model.StatusPending, true}, {"in_progress", model.StatusPending, true},
		{"in-progress", model.StatusPending, true}, {"joining", model.StatusPending, true},
		{"  error  ", model.StatusError, true},
		{"", "", false}, {"exploded", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeType(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("NormalizeType(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    model.RawStatus
		expected model.StatusClassification
	}{
		{
			name:     "explicit fields",
			input:    model.RawStatus{Type: "error", Value: "Whatever", Category: "capacity_error", Priority: "high"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryCapacity, Priority: model.PriorityHigh},
		},
		{
			name:     "category spelling normalized",
			input:    model.RawStatus{Type: "error", Category: "Auth-Error", Priority: "Critical"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryAuth, Priority: model.PriorityCritical},
		},
		{
			name:     "success ignores category and priority",
			input:    model.RawStatus{Type: "success", Value: "Done", Category: "auth_error", Priority: "high"},
			expected: model.StatusClassification{Type: model.StatusSuccess, Category: model.CategoryNone, Priority: model.PriorityNone},
		},
		{
			name:     "missing category and priority use defaults",
			input:    model.RawStatus{Type: "warning", Value: "SomethingNew"},
			expected: model.StatusClassification{Type: model.StatusWarning, Category: model.CategoryUnknown, Priority: model.DefaultPriority},
		},
		{
			name:     "garbage priority uses default",
			input:    model.RawStatus{Type: "error", Category: "stalled", Priority: "urgent!!"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryStalled, Priority: model.PriorityMedium},
		},
		{
			name:     "known value fills missing fields",
			input:    model.RawStatus{Type: "error", Value: "LoginRequired"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryAuth, Priority: model.PriorityCritical},
		},
		{
			name:     "known value infers error type",
			input:    model.RawStatus{Value: "cannot_join_meeting"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryConnection, Priority: model.PriorityCritical},
		},
		{
			name:     "unknown everything is pending",
			input:    model.RawStatus{},
			expected: model.StatusClassification{Type: model.StatusPending, Category: model.CategoryNone, Priority: model.PriorityNone},
		},
		{
			name:     "explicit fields win over known table",
			input:    model.RawStatus{Type: "error", Value: "LoginRequired", Category: "api_error", Priority: "low"},
			expected: model.StatusClassification{Type: model.StatusError, Category: model.CategoryAPI, Priority: model.PriorityLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if got != tt.expected {
				t.Errorf("Classify(%+v) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlatformOf(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Platform
	}{
		{"https://zoom.us/j/123456", model.PlatformZoom},
		{"https://us02web.zoom.us/j/123?pwd=abc", model.PlatformZoom},
		{"https://meet.google.com/abc-defg-hij", model.PlatformGoogleMeet},
		{"meet.google.com/abc-defg-hij", model.PlatformGoogleMeet},
		{"https://teams.microsoft.com/l/meetup-join/19%3a", model.PlatformTeams},
		{"https://teams.live.com/meet/123", model.PlatformTeams},
		{"https://notzoom.us/j/1", model.PlatformUnknown},
		{"https://example.com", model.PlatformUnknown},
		{"", model.PlatformUnknown},
		{"::::", model.PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PlatformOf(tt.input); got != tt.expected {
				t.Errorf("PlatformOf(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeReport(t *testing.T) {
	tests := []struct {
		input    *model.UserReport
		expected model.ReportStatus
	}{
		{nil, ""},
		{&model.UserReport{Status: "open"}, model.ReportOpen},
		{&model.UserReport{Status: "In Progress"}, model.ReportInProgress},
		{&model.UserReport{Status: "closed"}, model.ReportClosed},
		{&model.UserReport{Status: "resolved"}, model.ReportClosed},
		{&model.UserReport{Status: "???"}, model.ReportOpen},
	}

	for _, tt := range tests {
		if got := NormalizeReport(tt.input); got != tt.expected {
			t.Errorf("NormalizeReport(%+v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRecords(t *testing.T) {
	in := []model.BotRecord{
		{UUID: "a", PlatformURL: "https://zoom.us/j/1", Status: model.RawStatus{Type: "success"}},
		{UUID: "b", PlatformURL: "https://meet.google.com/x", Status: model.RawStatus{Type: "error", Value: "Internal"},
			UserReportedError: &model.UserReport{Status: "open"}},
	}

	got := Records(in)
	if len(got) != 2 {
		t.Fatalf("Records len = %d, want 2", len(got))
	}
	if got[0].Platform != model.PlatformZoom || got[0].Class.Type != model.StatusSuccess {
		t.Errorf("record a = %+v", got[0])
	}
	if got[1].Class.Category != model.CategoryInternal || got[1].Report != model.ReportOpen {
		t.Errorf("record b = %+v", got[1])
	}
	if got[1].UUID != "b" {
		t.Errorf("record b uuid = %q", got[1].UUID)
	}
}
