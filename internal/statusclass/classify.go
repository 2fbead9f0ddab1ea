package statusclass

import (
	"net/url"
	"strings"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// knownError is the triage classification of a well-known status value.
type knownError struct {
	category model.Category
	priority model.Priority
}

// knownErrors maps upstream status values to their category and priority.
// It is consulted when a status payload omits or garbles either field.
var knownErrors = map[string]knownError{
	"botnotaccepted":          {model.CategoryMeetingAccess, model.PriorityHigh},
	"botremoved":              {model.CategoryMeetingAccess, model.PriorityMedium},
	"botkicked":               {model.CategoryMeetingAccess, model.PriorityMedium},
	"waitingroomtimeout":      {model.CategoryMeetingAccess, model.PriorityMedium},
	"noattendees":             {model.CategoryMeetingAccess, model.PriorityLow},
	"nospeaker":               {model.CategoryMeetingAccess, model.PriorityLow},
	"invalidmeetingurl":       {model.CategoryConnection, model.PriorityHigh},
	"cannotjoinmeeting":       {model.CategoryConnection, model.PriorityCritical},
	"streamingsetupfailed":    {model.CategoryConnection, model.PriorityHigh},
	"loginrequired":           {model.CategoryAuth, model.PriorityCritical},
	"invalidcredentials":      {model.CategoryAuth, model.PriorityCritical},
	"timeoutwaitingtostart":   {model.CategoryStalled, model.PriorityMedium},
	"recordingtimeout":        {model.CategoryStalled, model.PriorityHigh},
	"recordingfailed":         {model.CategoryRecording, model.PriorityHigh},
	"transcriptionfailed":     {model.CategoryTranscription, model.PriorityHigh},
	"concurrencylimitreached": {model.CategoryCapacity, model.PriorityHigh},
	"nomachineavailable":      {model.CategoryCapacity, model.PriorityCritical},
	"apirequestfailed":        {model.CategoryAPI, model.PriorityMedium},
	"webhookfailed":           {model.CategoryAPI, model.PriorityLow},
	"internal":                {model.CategoryInternal, model.PriorityCritical},
}

func lookupKnown(value string) (knownError, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	ke, ok := knownErrors[key]
	return ke, ok
}

// NormalizeType converts the many spellings of a status type to a StatusType.
// The boolean is false when the input is not recognized.
func NormalizeType(raw string) (model.StatusType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "completed", "complete", "done", "ok":
		return model.StatusSuccess, true
	case "error", "err", "failed", "failure", "fatal":
		return model.StatusError, true
	case "warning", "warn":
		return model.StatusWarning, true
	case "pending", "in_progress", "in-progress", "running", "queued", "joining":
		return model.StatusPending, true
	}
	return "", false
}

func normalizeToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// NormalizeCategory maps raw to a Category. The boolean is false when raw is
// not one of the error categories.
func NormalizeCategory(raw string) (model.Category, bool) {
	c := model.Category(normalizeToken(raw))
	switch c {
	case model.CategoryCapacity, model.CategoryAuth, model.CategoryConnection,
		model.CategoryMeetingAccess, model.CategoryRecording, model.CategoryTranscription,
		model.CategoryAPI, model.CategoryStalled, model.CategoryInternal, model.CategoryUnknown:
		return c, true
	}
	return "", false
}

// NormalizePriority maps raw to a Priority. The boolean is false when raw is
// not one of the error priorities.
func NormalizePriority(raw string) (model.Priority, bool) {
	switch normalizeToken(raw) {
	case "critical", "crit", "p0":
		return model.PriorityCritical, true
	case "high", "p1":
		return model.PriorityHigh, true
	case "medium", "med", "normal", "p2":
		return model.PriorityMedium, true
	case "low", "p3":
		return model.PriorityLow, true
	}
	return "", false
}

// Classify normalizes a raw status payload. It never fails: unrecognized
// input falls back to the known status value table and then to the
// documented defaults (category unknown, priority model.DefaultPriority).
func Classify(raw model.RawStatus) model.StatusClassification {
	known, isKnown := lookupKnown(raw.Value)

	typ, ok := NormalizeType(raw.Type)
	if !ok {
		if isKnown {
			typ = model.StatusError
		} else {
			typ = model.StatusPending
		}
	}

	if !typ.IsProblem() {
		return model.StatusClassification{
			Type:     typ,
			Category: model.CategoryNone,
			Priority: model.PriorityNone,
		}
	}

	category, ok := NormalizeCategory(raw.Category)
	if !ok {
		category = model.CategoryUnknown
		if isKnown {
			category = known.category
		}
	}

	priority, ok := NormalizePriority(raw.Priority)
	if !ok {
		priority = model.DefaultPriority
		if isKnown {
			priority = known.priority
		}
	}

	return model.StatusClassification{Type: typ, Category: category, Priority: priority}
}

// PlatformOf derives the meeting platform from a meeting URL.
func PlatformOf(meetingURL string) model.Platform {
	s := strings.TrimSpace(meetingURL)
	if s == "" {
		return model.PlatformUnknown
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return model.PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "zoom.us" || strings.HasSuffix(host, ".zoom.us"):
		return model.PlatformZoom
	case host == "meet.google.com":
		return model.PlatformGoogleMeet
	case host == "teams.microsoft.com" || host == "teams.live.com":
		return model.PlatformTeams
	}
	return model.PlatformUnknown
}

// NormalizeReport maps a user-report status to a ReportStatus. Reports with
// an unrecognized status are treated as open.
func NormalizeReport(r *model.UserReport) model.ReportStatus {
	if r == nil {
		return ""
	}
	switch normalizeToken(r.Status) {
	case "in_progress", "inprogress", "investigating":
		return model.ReportInProgress
	case "closed", "resolved", "done":
		return model.ReportClosed
	}
	return model.ReportOpen
}

// Record builds the classified view of one BotRecord.
func Record(b model.BotRecord) model.Record {
	return model.Record{
		BotRecord: b,
		Platform:  PlatformOf(b.PlatformURL),
		Class:     Classify(b.Status),
		Report:    NormalizeReport(b.UserReportedError),
	}
}

// Records classifies every record in order.
func Records(in []model.BotRecord) []model.Record {
	out := make([]model.Record, len(in))
	for i, b := range in {
		out[i] = Record(b)
	}
	return out
}
