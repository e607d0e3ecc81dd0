package processors

import (
	"testing"
)

func TestParseObjectFencedJSON(t *testing.T) {
	r := NewJSONRepairer()

	raw := "```json\n{\"name\": \"Ada\", \"score\": 85}\n```"
	var out struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	if err := r.ParseObject(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Name != "Ada" || out.Score != 85 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestParseObjectWithSurroundingProse(t *testing.T) {
	r := NewJSONRepairer()

	raw := "Here is the evaluation you asked for:\n{\"decision\": \"Review\"}\nLet me know if you need more."
	var out struct {
		Decision string `json:"decision"`
	}
	if err := r.ParseObject(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Decision != "Review" {
		t.Fatalf("unexpected decision: %q", out.Decision)
	}
}

func TestParseObjectStripsThinkingBlocks(t *testing.T) {
	r := NewJSONRepairer()

	raw := "<thinking>\nThe candidate mentions Go in {braces} which might confuse extraction.\n</thinking>\n{\"ok\": true}"
	var out struct {
		OK bool `json:"ok"`
	}
	if err := r.ParseObject(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected ok=true")
	}
}

func TestParseObjectSmartQuotes(t *testing.T) {
	r := NewJSONRepairer()

	raw := "{“status”: “Met”}"
	var out struct {
		Status string `json:"status"`
	}
	if err := r.ParseObject(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Status != "Met" {
		t.Fatalf("unexpected status: %q", out.Status)
	}
}

func TestParseArray(t *testing.T) {
	r := NewJSONRepairer()

	raw := "```\n[{\"requirement\": \"Go\"}, {\"requirement\": \"SQL\"}]\n```"
	var out []struct {
		Requirement string `json:"requirement"`
	}
	if err := r.ParseArray(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(out) != 2 || out[1].Requirement != "SQL" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestParseObjectRejectsGarbage(t *testing.T) {
	r := NewJSONRepairer()

	var out map[string]interface{}
	if err := r.ParseObject("no json here at all", &out); err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
	if err := r.ParseObject("", &out); err == nil {
		t.Fatalf("expected error for empty output")
	}
}
