package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/leads"
)

const DefaultMaxLeads = 500

type Action string

const (
	ActionAssignOwner    Action = "assign_owner"
	ActionChangeStage    Action = "change_stage"
	ActionSetSource      Action = "set_source"
	ActionSetFollowup    Action = "set_followup"
	ActionAddServices    Action = "add_services"
	ActionRemoveServices Action = "remove_services"
	ActionArchive        Action = "archive"
)

// RawRequest is the request body as sent by clients.
type RawRequest struct {
	LeadIDs []string        `json:"lead_ids"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Request is a validated bulk action: unique lead ids and a typed payload
// that already satisfies the action's rules.
type Request struct {
	LeadIDs []uuid.UUID
	Action  Action
	Payload Payload
}

// Payload is one of the typed action payloads below.
type Payload interface {
	isPayload()
}

type AssignOwnerPayload struct {
	OwnerID *uuid.UUID `json:"owner_id"`
}

type ChangeStagePayload struct {
	Stage          leads.Stage         `json:"stage"`
	NextFollowupAt *openapi_types.Date `json:"next_followup_at,omitempty"`
	Contact        *string             `json:"contact,omitempty"`
}

type SetSourcePayload struct {
	SourceType   leads.SourceType `json:"source_type"`
	SourceDetail *string          `json:"source_detail,omitempty"`
}

type SetFollowupPayload struct {
	NextFollowupAt *openapi_types.Date   `json:"next_followup_at"`
	FollowupWindow *leads.FollowupWindow `json:"followup_window"`
}

type ServicesPayload struct {
	ServiceIDs []uuid.UUID `json:"service_ids"`
}

type ArchivePayload struct{}

func (AssignOwnerPayload) isPayload() {}
func (ChangeStagePayload) isPayload() {}
func (SetSourcePayload) isPayload() {}
func (SetFollowupPayload) isPayload() {}
func (ServicesPayload) isPayload() {}
func (ArchivePayload) isPayload() {}

// ParseRequest validates the lead id set, the action tag and the payload.
// Nothing is mutated here, so every validation failure happens before any
// storage call.
func ParseRequest(raw RawRequest, maxLeads int) (Request, error) {
	if maxLeads <= 0 {
		maxLeads = DefaultMaxLeads
	}

	if len(raw.LeadIDs) == 0 {
		return Request{}, apperr.Validation("BAD_REQUEST", "lead_ids must not be empty")
	}
	if len(raw.LeadIDs) > maxLeads {
		return Request{}, apperr.Validation("BAD_REQUEST", fmt.Sprintf("lead_ids must contain at most %d entries", maxLeads)).
			WithDetail("max", maxLeads)
	}

	seen := make(map[string]struct{}, len(raw.LeadIDs))
	for _, id := range raw.LeadIDs {
		if _, ok := seen[id]; ok {
			return Request{}, apperr.Validation("BAD_REQUEST", "lead_ids must be unique").
				WithDetail("duplicate", id)
		}
		seen[id] = struct{}{}
	}

	ids := make([]uuid.UUID, 0, len(raw.LeadIDs))
	for _, id := range raw.LeadIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Request{}, apperr.Validation("BAD_REQUEST", "lead_ids must be UUIDs").
				WithDetail("invalid", id)
		}
		ids = append(ids, parsed)
	}
	// Two spellings of one UUID (case, braces) still name the same lead.
	if distinct := uniqueIDs(ids); len(distinct) != len(ids) {
		return Request{}, apperr.Validation("BAD_REQUEST", "lead_ids must be unique")
	}

	action := Action(strings.TrimSpace(raw.Action))
	payload, err := decodePayload(action, raw.Payload)
	if err != nil {
		return Request{}, err
	}
	return Request{LeadIDs: ids, Action: action, Payload: payload}, nil
}

func decodePayload(action Action, raw json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}

	switch action {
	case ActionAssignOwner:
		var p AssignOwnerPayload
		if err := decodeStrict(raw, &p, "owner_id"); err != nil {
			return nil, err
		}
		return p, nil

	case ActionChangeStage:
		var p ChangeStagePayload
		if err := decodeStrict(raw, &p, "stage"); err != nil {
			return nil, err
		}
		if _, ok := leads.ParseStage(string(p.Stage)); !ok {
			return nil, invalidPayload("stage is not a known pipeline stage")
		}
		if p.Contact != nil {
			if trimmed := strings.TrimSpace(*p.Contact); trimmed == "" {
				p.Contact = nil
			} else {
				p.Contact = &trimmed
			}
		}
		if p.Stage == leads.StageContacted {
			var followup *string
			if p.NextFollowupAt != nil {
				s := p.NextFollowupAt.String()
				followup = &s
			}
			if !leads.ContactedRequirementsMet(p.Stage, p.Contact, followup) {
				return nil, apperr.Validation("CONTACTED_REQUIRES_FOLLOWUP_AND_CONTACT",
					"Moving leads to Contacted requires next_followup_at and contact")
			}
		}
		return p, nil

	case ActionSetSource:
		var p SetSourcePayload
		if err := decodeStrict(raw, &p, "source_type"); err != nil {
			return nil, err
		}
		if _, ok := leads.ParseSourceType(string(p.SourceType)); !ok {
			return nil, invalidPayload("source_type is not a known source")
		}
		if p.SourceDetail != nil && strings.TrimSpace(*p.SourceDetail) == "" {
			p.SourceDetail = nil
		}
		return p, nil

	case ActionSetFollowup:
		var p SetFollowupPayload
		if err := decodeStrict(raw, &p, "next_followup_at", "followup_window"); err != nil {
			return nil, err
		}
		if p.FollowupWindow != nil {
			if _, ok := leads.ParseFollowupWindow(string(*p.FollowupWindow)); !ok {
				return nil, invalidPayload("followup_window must be Morning, Afternoon or Anytime")
			}
		}
		return p, nil

	case ActionAddServices, ActionRemoveServices:
		var p ServicesPayload
		if err := decodeStrict(raw, &p, "service_ids"); err != nil {
			return nil, err
		}
		if len(p.ServiceIDs) == 0 {
			return nil, invalidPayload("service_ids must not be empty")
		}
		p.ServiceIDs = uniqueIDs(p.ServiceIDs)
		return p, nil

	case ActionArchive:
		var p ArchivePayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	return nil, apperr.Validation("UNSUPPORTED_ACTION", "Unsupported bulk action").
		WithDetail("action", string(action))
}

// decodeStrict rejects unknown fields and requires each of the named keys to
// be present, though a present key may be null.
func decodeStrict(raw json.RawMessage, dest any, required ...string) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return invalidPayload("payload must be a JSON object")
	}
	for _, key := range required {
		if _, ok := keys[key]; !ok {
			return invalidPayload(key + " is required")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return invalidPayload(err.Error())
	}
	return nil
}

func invalidPayload(message string) error {
	return apperr.Validation("INVALID_PAYLOAD", message)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
