package model

import "time"

// StatusType is the terminal outcome class of a bot session.
type StatusType string

const (
	StatusSuccess StatusType = "success"
	StatusError   StatusType = "error"
	StatusWarning StatusType = "warning"
	StatusPending StatusType = "pending"
)

// StatusTypes lists every status type in canonical order.
var StatusTypes = []StatusType{StatusSuccess, StatusError, StatusWarning, StatusPending}

// IsProblem reports whether the type counts towards error aggregations.
func (t StatusType) IsProblem() bool {
	return t == StatusError || t == StatusWarning
}

// Category is the triage bucket of an error or warning status.
type Category string

const (
	CategoryCapacity      Category = "capacity_error"
	CategoryAuth          Category = "auth_error"
	CategoryConnection    Category = "connection_error"
	CategoryMeetingAccess Category = "meeting_access"
	CategoryRecording     Category = "recording_error"
	CategoryTranscription Category = "transcription_error"
	CategoryAPI           Category = "api_error"
	CategoryStalled       Category = "stalled"
	CategoryInternal      Category = "internal_error"
	CategoryUnknown       Category = "unknown"
	// CategoryNone is used for success and pending records.
	CategoryNone Category = "none"
)

// Categories lists every category in canonical order.
var Categories = []Category{
	CategoryCapacity, CategoryAuth, CategoryConnection, CategoryMeetingAccess,
	CategoryRecording, CategoryTranscription, CategoryAPI, CategoryStalled,
	CategoryInternal, CategoryUnknown, CategoryNone,
}

// Priority is the triage urgency of an error or warning status.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNone     Priority = "none"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone}

// DefaultPriority is applied to error and warning statuses whose priority
// is missing or unrecognized.
const DefaultPriority = PriorityMedium

// Platform is the meeting platform a bot joined.
type Platform string

const (
	PlatformZoom       Platform = "zoom"
	PlatformGoogleMeet Platform = "google_meet"
	PlatformTeams      Platform = "teams"
	PlatformUnknown    Platform = "unknown"
)

// Platforms lists every platform in canonical order.
var Platforms = []Platform{PlatformZoom, PlatformGoogleMeet, PlatformTeams, PlatformUnknown}

// ReportStatus is the lifecycle state of a user-reported issue.
type ReportStatus string

const (
	ReportOpen       ReportStatus = "open"
	ReportInProgress ReportStatus = "in_progress"
	ReportClosed     ReportStatus = "closed"
)

// ReportStatuses lists every report status in canonical order.
var ReportStatuses = []ReportStatus{ReportOpen, ReportInProgress, ReportClosed}

// ReportNone is the user-report filter value for records without a report.
const ReportNone = "none"

// RawStatus is the status payload exactly as the upstream service sends it.
type RawStatus struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	Message  string `json:"message,omitempty"`
}

// UserReport is an issue a user filed against a bot session.
type UserReport struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// BotRecord is one meeting-bot session as produced by the upstream service.
// Duration is in seconds.
type BotRecord struct {
	UUID              string      `json:"uuid"`
	CreatedAt         time.Time   `json:"created_at"`
	Duration          float64     `json:"duration"`
	PlatformURL       string      `json:"platformUrl"`
	Status            RawStatus   `json:"status"`
	UserReportedError *UserReport `json:"userReportedError,omitempty"`
}

// StatusClassification is the normalized form of a RawStatus.
type StatusClassification struct {
	Type     StatusType `json:"type"`
	Category Category   `json:"category"`
	Priority Priority   `json:"priority"`
}

// Record is a BotRecord with its derived platform and classification.
// Records are built once at the fetch boundary and never mutated.
type Record struct {
	BotRecord
	Platform Platform             `json:"platform"`
	Class    StatusClassification `json:"classification"`
	// Report is the normalized user-report status, empty when none was filed.
	Report ReportStatus `json:"reportStatus,omitempty"`
}

// DateRange is an inclusive UTC time window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days is the number of UTC calendar days the range touches, or 0 when End
// is before Start.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	const day = 24 * time.Hour
	// Sub saturates, so spans beyond Duration's reach still compare as huge.
	return int(r.End.UTC().Truncate(day).Sub(r.Start.UTC().Truncate(day))/day) + 1
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
