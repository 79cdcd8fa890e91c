package insight

import (
	"fmt"
	"time"
)

// EvidenceRow is one source record to incorporate into a summary. Rows
// are read-only; they become "processed" by being recorded against the
// warehouse once incorporated into an accepted model output.
type EvidenceRow struct {
	ENIID         string `json:"eni_id"`
	ContactID     string `json:"contact_id"`
	Description   string `json:"description"`
	LoggedDate    string `json:"logged_date"`
	SourceType    string `json:"source_type"`
	SourceSubtype string `json:"source_subtype"`
}

// Group is the unit of work: one (contact, source_type, source_subtype)
// partition with its evidence rows ordered newest first.
type Group struct {
	ContactID     string
	SourceType    string
	SourceSubtype string
	Rows          []EvidenceRow
}

// CompositeENIID returns the synthetic id recorded on the insight
// produced from this group.
func (g Group) CompositeENIID() string {
	return fmt.Sprintf("COMBINED-%s-%s-%s-%dENI", g.SourceType, g.SourceSubtype, g.ContactID, len(g.Rows))
}

// ClaimKey returns the claim-coordinator key for a contact.
func ClaimKey(contactID string) string {
	return "contact/" + contactID
}

// Sections holds the named text blocks of a member summary.
type Sections struct {
	Personal      string `json:"personal"`
	Business      string `json:"business"`
	Investing     string `json:"investing"`
	Engagement    string `json:"engagement"`
	Deals         string `json:"deals"`
	Introductions string `json:"introductions"`
}

// IsEmpty reports whether no section carries any text.
func (s Sections) IsEmpty() bool {
	return s.Personal == "" && s.Business == "" && s.Investing == "" &&
		s.Engagement == "" && s.Deals == "" && s.Introductions == ""
}

// Markdown renders the sections as heading-delimited text, the shape
// fed back to the model as the existing summary on later iterations.
func (s Sections) Markdown() string {
	out := ""
	for _, part := range []struct {
		heading string
		body    string
	}{
		{"Personal", s.Personal},
		{"Business", s.Business},
		{"Investing", s.Investing},
		{"Engagement", s.Engagement},
		{"Deals", s.Deals},
		{"Introductions", s.Introductions},
	} {
		if part.body == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += "## " + part.heading + "\n" + part.body
	}
	return out
}

// ScaffoldMarkdown returns the heading skeleton fed to the model as the
// existing summary on a contact's first iteration, so output lands in
// the expected sections instead of an invented structure.
func ScaffoldMarkdown() string {
	return "## Personal\nNo information yet.\n\n" +
		"## Business\nNo information yet.\n\n" +
		"## Investing\nNo information yet.\n\n" +
		"## Engagement\nNo information yet.\n\n" +
		"## Deals\nNo information yet.\n\n" +
		"## Introductions\nNo information yet."
}

// StructuredInsight is one durable, versioned summary row. Rows are
// insert-only; the only in-place mutation ever applied is the is_latest
// flip on superseded versions.
type StructuredInsight struct {
	ID                    string
	ContactID             string
	ENIID                 string
	Generator             string
	Version               int
	IsLatest              bool
	Sections              Sections
	SourceTypes           []string
	SourceSubtypes        []string
	RecordCount           int
	TotalSourceIDs        int
	EstInputTokens        int
	EstOutputTokens       int
	GenerationTimeSeconds float64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Metadata carries the per-iteration write context for ProcessInsight.
// Source type/subtype reflect only the group being written, not the
// cumulative history; history is reconstructed by reading back through
// versions.
type Metadata struct {
	SourceType            string
	SourceSubtype         string
	RecordCount           int
	TotalSourceIDs        int
	EstInputTokens        int
	EstOutputTokens       int
	GenerationTimeSeconds float64
}
