package leads

import (
	"regexp"
	"strings"
	"time"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseFollowupDate accepts only a bare YYYY-MM-DD calendar date.
func ParseFollowupDate(raw string) (time.Time, bool) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// ContactedRequirementsMet reports whether a lead in the given stage carries the
// fields the Contacted stage requires. Other stages always pass.
func ContactedRequirementsMet(stage Stage, contact *string, nextFollowupAt *string) bool {
	if stage != StageContacted {
		return true
	}
	if contact == nil || strings.TrimSpace(*contact) == "" {
		return false
	}
	return nextFollowupAt != nil && strings.TrimSpace(*nextFollowupAt) != ""
}

func (c CandidateLead) Valid() bool {
	return ContactedRequirementsMet(c.Stage, c.Contact, c.NextFollowupAt)
}
