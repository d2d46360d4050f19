package importer

import "github.com/leadboard/apps/api/internal/leads"

// ExistingIndex holds the keys already used by leads of one table.
type ExistingIndex struct {
	Domains     map[string]struct{}
	Contacts    map[string]struct{}
	WebsiteURLs map[string]struct{}
}

// Candidate is a normalized lead together with its 1-based position among
// the CSV body rows.
type Candidate struct {
	RowIndex int
	Lead     leads.CandidateLead
}

// LookupKeys are the distinct non-null key values of a candidate batch.
type LookupKeys struct {
	Domains     []string
	Contacts    []string
	WebsiteURLs []string
}

func CollectKeys(candidates []Candidate) LookupKeys {
	var keys LookupKeys
	seenDomain := map[string]struct{}{}
	seenContact := map[string]struct{}{}
	seenWebsite := map[string]struct{}{}
	for _, candidate := range candidates {
		c := candidate.Lead
		keys.Domains = appendDistinct(keys.Domains, seenDomain, c.Domain)
		keys.Contacts = appendDistinct(keys.Contacts, seenContact, c.Contact)
		keys.WebsiteURLs = appendDistinct(keys.WebsiteURLs, seenWebsite, c.WebsiteURL)
	}
	return keys
}

// DetectDuplicates flags candidates whose domain, contact or website URL is
// already used in the table. Flagged candidates are still imported.
func DetectDuplicates(candidates []Candidate, existing ExistingIndex) []leads.DuplicateCandidate {
	out := []leads.DuplicateCandidate{}
	for _, candidate := range candidates {
		c := candidate.Lead
		var reasons []leads.DuplicateReason
		if contains(existing.Domains, c.Domain) {
			reasons = append(reasons, leads.ReasonDomain)
		}
		if contains(existing.Contacts, c.Contact) {
			reasons = append(reasons, leads.ReasonContact)
		}
		if contains(existing.WebsiteURLs, c.WebsiteURL) {
			reasons = append(reasons, leads.ReasonWebsiteURL)
		}
		if len(reasons) == 0 {
			continue
		}
		out = append(out, leads.DuplicateCandidate{
			RowIndex:     candidate.RowIndex,
			BusinessName: c.BusinessName,
			Reasons:      reasons,
		})
	}
	return out
}

func contains(set map[string]struct{}, value *string) bool {
	if value == nil || set == nil {
		return false
	}
	_, ok := set[*value]
	return ok
}

func appendDistinct(values []string, seen map[string]struct{}, value *string) []string {
	if value == nil {
		return values
	}
	if _, ok := seen[*value]; ok {
		return values
	}
	seen[*value] = struct{}{}
	return append(values, *value)
}
