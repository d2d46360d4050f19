package importer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/leads"
)

// Logical lead fields a CSV column can be mapped to.
const (
	FieldBusinessName   = "business_name"
	FieldStage          = "stage"
	FieldContact        = "contact"
	FieldWebsiteURL     = "website_url"
	FieldNotes          = "notes"
	FieldSourceType     = "source_type"
	FieldSourceDetail   = "source_detail"
	FieldOwnerID        = "owner_id"
	FieldNextFollowupAt = "next_followup_at"
	FieldDoNotContact   = "do_not_contact"
	FieldDNCReason      = "dnc_reason"
	FieldLostReason     = "lost_reason"
)

var logicalFields = map[string]struct{}{
	FieldBusinessName:   {},
	FieldStage:          {},
	FieldContact:        {},
	FieldWebsiteURL:     {},
	FieldNotes:          {},
	FieldSourceType:     {},
	FieldSourceDetail:   {},
	FieldOwnerID:        {},
	FieldNextFollowupAt: {},
	FieldDoNotContact:   {},
	FieldDNCReason:      {},
	FieldLostReason:     {},
}

// TemplateHeaders is the header row of the downloadable import template.
var TemplateHeaders = []string{
	FieldBusinessName, FieldStage, FieldContact, FieldWebsiteURL, FieldNotes,
	FieldSourceType, FieldSourceDetail, FieldOwnerID, FieldNextFollowupAt,
	FieldDoNotContact, FieldDNCReason, FieldLostReason,
}

// Mapping renames logical fields to CSV headers. Unmapped fields are read from
// the column named after the field itself.
type Mapping map[string]string

func (m Mapping) column(field string) string {
	if header, ok := m[field]; ok && strings.TrimSpace(header) != "" {
		return strings.TrimSpace(header)
	}
	return field
}

// Config is the optional JSON document sent alongside an upload.
type Config struct {
	Mapping      Mapping `json:"mapping"`
	SourceType   string  `json:"source_type,omitempty"`
	SourceDetail string  `json:"source_detail,omitempty"`
	DefaultStage string  `json:"default_stage,omitempty"`
}

// ParseConfig decodes the upload config. Empty input yields the zero Config.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if strings.TrimSpace(string(raw)) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, apperr.Validation("INVALID_CONFIG", "config must be a JSON object")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var unknown []string
	for field := range c.Mapping {
		if _, ok := logicalFields[field]; !ok {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperr.Validation("INVALID_MAPPING", "mapping contains unknown fields").
			WithDetail("fields", unknown)
	}
	return nil
}

// Resolve layers the config's source and stage over the table defaults.
// Values that are not valid enum labels are ignored.
func (c Config) Resolve(defaults leads.TableDefaults) leads.TableDefaults {
	out := defaults
	if stage, ok := leads.ParseStage(strings.TrimSpace(c.DefaultStage)); ok {
		out.DefaultStage = stage
	}
	if source, ok := leads.ParseSourceType(strings.TrimSpace(c.SourceType)); ok {
		out.DefaultSourceType = source
	}
	if detail := strings.TrimSpace(c.SourceDetail); detail != "" {
		out.DefaultSourceDetail = &detail
	}
	return out
}

var truthyValues = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "y": {}}

// NormalizeRow converts a tokenized row into a candidate lead. It returns
// false when the row has no business name; such rows are dropped, not invalid.
func NormalizeRow(row Row, mapping Mapping, defaults leads.TableDefaults) (leads.CandidateLead, bool) {
	get := func(field string) string {
		return strings.TrimSpace(row[mapping.column(field)])
	}

	businessName := get(FieldBusinessName)
	if businessName == "" {
		return leads.CandidateLead{}, false
	}

	candidate := leads.CandidateLead{
		BusinessName: businessName,
		Stage:        defaults.DefaultStage,
		Contact:      optional(get(FieldContact)),
		Notes:        optional(get(FieldNotes)),
		SourceType:   defaults.DefaultSourceType,
		SourceDetail: defaults.DefaultSourceDetail,
		DNCReason:    optional(get(FieldDNCReason)),
		LostReason:   optional(get(FieldLostReason)),
	}

	if stage, ok := leads.ParseStage(get(FieldStage)); ok {
		candidate.Stage = stage
	}
	if source, ok := leads.ParseSourceType(get(FieldSourceType)); ok {
		candidate.SourceType = source
	}
	if detail := get(FieldSourceDetail); detail != "" {
		candidate.SourceDetail = &detail
	}

	website := get(FieldWebsiteURL)
	candidate.WebsiteURL = leads.NormalizeWebsiteURL(website)
	candidate.Domain = leads.ExtractDomain(website)

	if owner := get(FieldOwnerID); owner != "" {
		if id, err := uuid.Parse(owner); err == nil {
			candidate.OwnerID = &id
		}
	}

	if followup := get(FieldNextFollowupAt); followup != "" {
		if _, ok := leads.ParseFollowupDate(followup); ok {
			candidate.NextFollowupAt = &followup
		}
	}

	_, candidate.DoNotContact = truthyValues[strings.ToLower(get(FieldDoNotContact))]

	return candidate, true
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
