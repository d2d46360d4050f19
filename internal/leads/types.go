package leads

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageNew       Stage = "New"
	StageContacted Stage = "Contacted"
	StageReplied   Stage = "Replied"
	StageMeeting   Stage = "Meeting"
	StageProposal  Stage = "Proposal"
	StageWon       Stage = "Won"
	StageLost      Stage = "Lost"
)

var stages = []Stage{StageNew, StageContacted, StageReplied, StageMeeting, StageProposal, StageWon, StageLost}

// ParseStage matches the raw label exactly; labels are case-sensitive.
func ParseStage(raw string) (Stage, bool) {
	for _, s := range stages {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

type SourceType string

const (
	SourceInstagram SourceType = "Instagram"
	SourceMetaAds   SourceType = "MetaAds"
	SourceScraping  SourceType = "Scraping"
	SourceReferral  SourceType = "Referral"
	SourceWebsite   SourceType = "Website"
	SourceOther     SourceType = "Other"
	SourceUnknown   SourceType = "Unknown"
)

var sourceTypes = []SourceType{SourceInstagram, SourceMetaAds, SourceScraping, SourceReferral, SourceWebsite, SourceOther, SourceUnknown}

func ParseSourceType(raw string) (SourceType, bool) {
	for _, s := range sourceTypes {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

type FollowupWindow string

const (
	WindowMorning   FollowupWindow = "Morning"
	WindowAfternoon FollowupWindow = "Afternoon"
	WindowAnytime   FollowupWindow = "Anytime"
)

func ParseFollowupWindow(raw string) (FollowupWindow, bool) {
	switch FollowupWindow(raw) {
	case WindowMorning, WindowAfternoon, WindowAnytime:
		return FollowupWindow(raw), true
	}
	return "", false
}

// TableDefaults are the per-table fallbacks applied while normalizing imported rows.
type TableDefaults struct {
	DefaultStage        Stage
	DefaultSourceType   SourceType
	DefaultSourceDetail *string
}

type Table struct {
	ID    uuid.UUID
	OrgID uuid.UUID
	Name  string
	TableDefaults
}

// CandidateLead is a normalized row that has not been persisted yet.
type CandidateLead struct {
	BusinessName   string
	Stage          Stage
	Contact        *string
	WebsiteURL     *string
	Domain         *string
	Notes          *string
	SourceType     SourceType
	SourceDetail   *string
	OwnerID        *uuid.UUID
	NextFollowupAt *string
	DoNotContact   bool
	DNCReason      *string
	LostReason     *string
}

type Lead struct {
	ID             uuid.UUID
	TableID        uuid.UUID
	OrgID          uuid.UUID
	BusinessName   string
	Stage          Stage
	Contact        *string
	WebsiteURL     *string
	Domain         *string
	Notes          *string
	SourceType     SourceType
	SourceDetail   *string
	OwnerID        *uuid.UUID
	NextFollowupAt *time.Time
	FollowupWindow *FollowupWindow
	DoNotContact   bool
	DNCReason      *string
	LostReason     *string
	IsArchived     bool
	ImportBatchID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DuplicateReason string

const (
	ReasonDomain     DuplicateReason = "domain"
	ReasonContact    DuplicateReason = "contact"
	ReasonWebsiteURL DuplicateReason = "website_url"
)

// DuplicateCandidate reports an imported row that collides with existing leads.
// RowIndex is the 1-based position of the row in the CSV body.
type DuplicateCandidate struct {
	RowIndex     int               `json:"row_index"`
	BusinessName string            `json:"business_name"`
	Reasons      []DuplicateReason `json:"reasons"`
}

type ImportBatch struct {
	ID                  uuid.UUID
	TableID             uuid.UUID
	OrgID               uuid.UUID
	CreatedBy           uuid.UUID
	Filename            string
	SourceDefaultType   SourceType
	SourceDefaultDetail *string
	RowCount            int
	CreatedAt           time.Time
}
