package seeds

import (
	"strings"
	"testing"
)

const validYAML = `
version: "2026-02"
categories:
  - name: causal
    seeds:
      - name: CAUSES
        definition: direct causal influence from subject to object
      - name: PREVENTS
  - name: structural
    seeds:
      - name: PART_OF
`

func TestParseValid(t *testing.T) {
	set, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set.Version != "2026-02" {
		t.Fatalf("version = %q", set.Version)
	}
	if len(set.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(set.Categories))
	}
	if set.SeedCount() != 3 {
		t.Fatalf("seed count = %d, want 3", set.SeedCount())
	}
	if got := set.CategoryOf("PART_OF"); got != "structural" {
		t.Fatalf("CategoryOf(PART_OF) = %q", got)
	}
	if got := set.CategoryOf("UNKNOWN"); got != "" {
		t.Fatalf("CategoryOf(UNKNOWN) = %q, want empty", got)
	}
	names := set.CategoryNames()
	if len(names) != 2 || names[0] != "causal" || names[1] != "structural" {
		t.Fatalf("CategoryNames = %v", names)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no categories": `version: "1"`,
		"empty category name": `
categories:
  - name: ""
    seeds: [{name: CAUSES}]
`,
		"category without seeds": `
categories:
  - name: causal
    seeds: []
`,
		"duplicate seed across categories": `
categories:
  - name: causal
    seeds: [{name: CAUSES}]
  - name: other
    seeds: [{name: CAUSES}]
`,
		"non-canonical seed token": `
categories:
  - name: causal
    seeds: [{name: "causes something"}]
`,
	}
	for label, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: expected error, got nil", label)
		}
	}
}

func TestEmbeddingText(t *testing.T) {
	withDef := Seed{Name: "CAUSES", Definition: "direct causal influence"}
	if got := EmbeddingText(withDef); !strings.HasPrefix(got, "CAUSES: ") {
		t.Fatalf("EmbeddingText = %q", got)
	}
	bare := Seed{Name: "PREVENTS"}
	if got := EmbeddingText(bare); got != "PREVENTS" {
		t.Fatalf("EmbeddingText = %q", got)
	}
}
