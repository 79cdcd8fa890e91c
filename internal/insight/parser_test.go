package insight

import (
	"testing"
)

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is the summary:\n```json\n{\"personal\": \"Enjoys sailing.\", \"business\": \"Runs a fintech startup.\"}\n```\nDone."

	res := Parse(raw)
	if res.Outcome != ParsedFencedJSON {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedFencedJSON)
	}
	if res.Sections.Personal != "Enjoys sailing." {
		t.Errorf("personal = %q", res.Sections.Personal)
	}
	if res.Sections.Business != "Runs a fintech startup." {
		t.Errorf("business = %q", res.Sections.Business)
	}
	if res.Sections.Deals != "" {
		t.Errorf("deals should be empty, got %q", res.Sections.Deals)
	}
}

func TestParseBareJSON(t *testing.T) {
	raw := `{"investing": "Angel investor in climate tech.", "introductions": "Wants intros to LPs."}`

	res := Parse(raw)
	if res.Outcome != ParsedBareJSON {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedBareJSON)
	}
	if res.Sections.Investing != "Angel investor in climate tech." {
		t.Errorf("investing = %q", res.Sections.Investing)
	}
}

func TestParseWrappedJSON(t *testing.T) {
	raw := `{"member_summary": {"personal": "Based in Austin.", "engagement": "Attended two dinners."}}`

	res := Parse(raw)
	if res.Outcome != ParsedBareJSON {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedBareJSON)
	}
	if res.Sections.Personal != "Based in Austin." {
		t.Errorf("personal = %q", res.Sections.Personal)
	}
	if res.Sections.Engagement != "Attended two dinners." {
		t.Errorf("engagement = %q", res.Sections.Engagement)
	}
}

func TestParseGenericFence(t *testing.T) {
	raw := "```\n{\"deals\": \"Exploring a seed round.\"}\n```"

	res := Parse(raw)
	if res.Outcome != ParsedGenericFence {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedGenericFence)
	}
	if res.Sections.Deals != "Exploring a seed round." {
		t.Errorf("deals = %q", res.Sections.Deals)
	}
}

func TestParseMarkdownHeadings(t *testing.T) {
	raw := `## Personal
Married, two kids, splits time between NYC and Miami.

## Business
CEO of a logistics company.

## Introductions
Asked to meet family offices.`

	res := Parse(raw)
	if res.Outcome != ParsedMarkdown {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedMarkdown)
	}
	if res.Sections.Personal != "Married, two kids, splits time between NYC and Miami." {
		t.Errorf("personal = %q", res.Sections.Personal)
	}
	if res.Sections.Business != "CEO of a logistics company." {
		t.Errorf("business = %q", res.Sections.Business)
	}
	if res.Sections.Introductions != "Asked to meet family offices." {
		t.Errorf("introductions = %q", res.Sections.Introductions)
	}
}

func TestParseUnparseable(t *testing.T) {
	raw := "I could not produce a summary this time."

	res := Parse(raw)
	if res.Outcome != Unparsed {
		t.Fatalf("outcome = %q, want %q", res.Outcome, Unparsed)
	}
	if !res.Sections.IsEmpty() {
		t.Error("sections should be empty for unparsed output")
	}
	if res.Raw != raw {
		t.Error("raw text should be preserved")
	}
}

func TestParseOrderPrefersFencedJSON(t *testing.T) {
	// Output containing both a fenced JSON block and markdown headings
	// must be parsed from the fence.
	raw := "## Personal\nwrong\n\n```json\n{\"personal\": \"right\"}\n```"

	res := Parse(raw)
	if res.Outcome != ParsedFencedJSON {
		t.Fatalf("outcome = %q, want %q", res.Outcome, ParsedFencedJSON)
	}
	if res.Sections.Personal != "right" {
		t.Errorf("personal = %q, want %q", res.Sections.Personal, "right")
	}
}

func TestSectionsMarkdownRoundTrip(t *testing.T) {
	s := Sections{
		Personal: "Likes hiking.",
		Deals:    "Closing series B.",
	}
	md := s.Markdown()

	res := Parse(md)
	if res.Outcome != ParsedMarkdown {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if res.Sections != s {
		t.Errorf("round trip mismatch: %+v != %+v", res.Sections, s)
	}
}

func TestCompositeENIID(t *testing.T) {
	g := Group{
		ContactID:     "CNT-42",
		SourceType:    "airtable_notes",
		SourceSubtype: "null",
		Rows:          make([]EvidenceRow, 3),
	}
	want := "COMBINED-airtable_notes-null-CNT-42-3ENI"
	if got := g.CompositeENIID(); got != want {
		t.Errorf("CompositeENIID() = %q, want %q", got, want)
	}
}
