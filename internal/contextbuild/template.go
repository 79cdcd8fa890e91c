package contextbuild

import (
	"fmt"
	"os"
	"strings"
)

// DefaultTemplate is used when no prompt template file is configured.
// Placeholders are substituted literally; there is no conditional or
// loop syntax.
const DefaultTemplate = `You maintain a structured profile of one member of a private network.

Existing summary (may be empty on the first pass):
{{existing_summary}}

Reference notes for the "{{source_type}}" source:
{{type_context}}

{{subtype_context}}

New interaction records to fold into the summary:
{{new_data_to_process}}

Update the summary to reflect the new records. Respond with a JSON object
inside a fenced code block with the keys: personal, business, investing,
engagement, deals, introductions.`

// LoadTemplate reads a template file, or returns DefaultTemplate when
// path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template %s: %w", path, err)
	}
	return string(data), nil
}

// Render substitutes {{key}} placeholders. Unknown placeholders are
// left in place so a misconfigured template is visible in the output.
func Render(template string, vars map[string]string) string {
	out := template
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out
}
