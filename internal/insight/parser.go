package insight

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseOutcome names the strategy that produced a ParseResult.
type ParseOutcome string

const (
	ParsedFencedJSON   ParseOutcome = "fenced_json"
	ParsedBareJSON     ParseOutcome = "bare_json"
	ParsedGenericFence ParseOutcome = "generic_fence"
	ParsedMarkdown     ParseOutcome = "markdown_headings"
	Unparsed           ParseOutcome = "unparsed"
)

// ParseResult is the tagged outcome of parsing model output. When no
// strategy matches, Outcome is Unparsed, Sections is empty and Raw
// holds the original text.
type ParseResult struct {
	Outcome  ParseOutcome
	Sections Sections
	Raw      string
}

type parseStrategy struct {
	outcome ParseOutcome
	fn      func(string) (Sections, bool)
}

// strategies are tried in this fixed order; the first match wins.
var strategies = []parseStrategy{
	{ParsedFencedJSON, parseFencedJSON},
	{ParsedBareJSON, parseBareJSON},
	{ParsedGenericFence, parseGenericFence},
	{ParsedMarkdown, parseMarkdownHeadings},
}

// Parse turns raw model output into structured sections. It never
// fails: unparseable output degrades to an Unparsed result with empty
// sections.
func Parse(raw string) ParseResult {
	for _, s := range strategies {
		if sections, ok := s.fn(raw); ok {
			return ParseResult{Outcome: s.outcome, Sections: sections, Raw: raw}
		}
	}
	return ParseResult{Outcome: Unparsed, Raw: raw}
}

var (
	jsonFenceRe    = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```\\s*\\n(.*?)```")
)

func parseFencedJSON(raw string) (Sections, bool) {
	m := jsonFenceRe.FindStringSubmatch(raw)
	if m == nil {
		return Sections{}, false
	}
	return sectionsFromJSON(m[1])
}

func parseBareJSON(raw string) (Sections, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Sections{}, false
	}
	return sectionsFromJSON(trimmed)
}

func parseGenericFence(raw string) (Sections, bool) {
	m := genericFenceRe.FindStringSubmatch(raw)
	if m == nil {
		return Sections{}, false
	}
	return sectionsFromJSON(m[1])
}

// sectionsFromJSON unmarshals a JSON object and extracts the section
// fields. Models sometimes nest the payload under a single wrapper key
// (e.g. "member_summary"); one level of descent is tolerated.
func sectionsFromJSON(body string) (Sections, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Sections{}, false
	}

	sections, found := sectionsFromMap(m)
	if found {
		return sections, true
	}

	if len(m) == 1 {
		for _, v := range m {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(v, &inner); err == nil {
				if sections, found := sectionsFromMap(inner); found {
					return sections, true
				}
			}
		}
	}
	return Sections{}, false
}

func sectionsFromMap(m map[string]json.RawMessage) (Sections, bool) {
	var sections Sections
	found := false
	assign := func(dst *string, key string) {
		v, ok := m[key]
		if !ok {
			return
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return
		}
		*dst = strings.TrimSpace(s)
		found = true
	}

	lowered := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		lowered[strings.ToLower(k)] = v
	}
	m = lowered

	assign(&sections.Personal, "personal")
	assign(&sections.Business, "business")
	assign(&sections.Investing, "investing")
	assign(&sections.Engagement, "engagement")
	assign(&sections.Deals, "deals")
	assign(&sections.Introductions, "introductions")
	return sections, found
}

// sectionHeadingRe matches one "## Heading" block up to the next
// heading or end of text.
func sectionHeadingRe(heading string) *regexp.Regexp {
	return regexp.MustCompile(`(?mi)^##\s*` + heading + `\s*\n([\s\S]*?)(?:\n##\s|\z)`)
}

var markdownSectionRes = map[string]*regexp.Regexp{
	"personal":      sectionHeadingRe("Personal"),
	"business":      sectionHeadingRe("Business"),
	"investing":     sectionHeadingRe("Investing"),
	"engagement":    sectionHeadingRe("Engagement"),
	"deals":         sectionHeadingRe("Deals"),
	"introductions": sectionHeadingRe("Introductions"),
}

func parseMarkdownHeadings(raw string) (Sections, bool) {
	var sections Sections
	found := false
	extract := func(dst *string, key string) {
		m := markdownSectionRes[key].FindStringSubmatch(raw)
		if m == nil {
			return
		}
		*dst = strings.TrimSpace(m[1])
		found = true
	}

	extract(&sections.Personal, "personal")
	extract(&sections.Business, "business")
	extract(&sections.Investing, "investing")
	extract(&sections.Engagement, "engagement")
	extract(&sections.Deals, "deals")
	extract(&sections.Introductions, "introductions")
	return sections, found
}
