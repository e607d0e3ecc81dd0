package processors

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JSONRepairer normalizes free-form model output into parseable JSON. Models
// wrap answers in markdown fences, prepend reasoning prose, and substitute
// typographic quotes; repair strips all of that before parsing.
type JSONRepairer struct{}

// NewJSONRepairer creates a new JSON repairer instance.
func NewJSONRepairer() *JSONRepairer {
	return &JSONRepairer{}
}

var thinkingBlocks = regexp.MustCompile(`(?s)<(thinking|reasoning|scratchpad)>.*?</(thinking|reasoning|scratchpad)>`)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'",
	"’", "'",
)

// Clean strips code fences, chain-of-thought markers and smart quotes from
// raw model output.
func (r *JSONRepairer) Clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = thinkingBlocks.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	return quoteReplacer.Replace(text)
}

// ParseObject parses raw model output into target. It tries a strict parse
// of the cleaned text first, then a permissive parse that extracts the
// outermost JSON object from surrounding prose.
func (r *JSONRepairer) ParseObject(raw string, target interface{}) error {
	return r.parse(raw, target, '{', '}')
}

// ParseArray is ParseObject for a top-level JSON array.
func (r *JSONRepairer) ParseArray(raw string, target interface{}) error {
	return r.parse(raw, target, '[', ']')
}

func (r *JSONRepairer) parse(raw string, target interface{}, open, close byte) error {
	text := r.Clean(raw)
	if text == "" {
		return fmt.Errorf("empty model output")
	}

	if err := json.Unmarshal([]byte(text), target); err == nil {
		return nil
	}

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON %c...%c found in model output", open, close)
	}

	candidate := text[start : end+1]
	if err := json.Unmarshal([]byte(candidate), target); err != nil {
		return fmt.Errorf("failed to parse model output as JSON: %w", err)
	}
	return nil
}
