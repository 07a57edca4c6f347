package seeds

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/epigraph-ai/epigraph-backend/internal/vocab/normalizer"
)

// The seed set is the curator-controlled coordinate system: a fixed, small
// set of categories, each anchored by seed types. It is loaded once,
// versioned, and injected; the engine never mutates it. Discovered types
// are the unbounded points placed within it.

type Seed struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition,omitempty"`
}

type Category struct {
	Name  string `yaml:"name"`
	Seeds []Seed `yaml:"seeds"`
}

type SeedSet struct {
	Version    string     `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

func Load(path string) (*SeedSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed set: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*SeedSet, error) {
	var set SeedSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse seed set: %w", err)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *SeedSet) validate() error {
	if len(s.Categories) == 0 {
		return fmt.Errorf("seed set has no categories")
	}
	seenCategory := map[string]bool{}
	seenSeed := map[string]bool{}
	for _, cat := range s.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("seed set has a category with no name")
		}
		if seenCategory[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		seenCategory[name] = true
		if len(cat.Seeds) == 0 {
			return fmt.Errorf("category %q has no seeds", name)
		}
		for _, seed := range cat.Seeds {
			token := normalizer.CanonicalToken(seed.Name)
			if token == "" {
				return fmt.Errorf("category %q has a seed with no name", name)
			}
			if token != seed.Name {
				return fmt.Errorf("seed %q in category %q is not a canonical token (want %q)", seed.Name, name, token)
			}
			if seenSeed[token] {
				return fmt.Errorf("seed %q appears in more than one category", token)
			}
			seenSeed[token] = true
		}
	}
	return nil
}

func (s *SeedSet) CategoryNames() []string {
	out := make([]string, 0, len(s.Categories))
	for _, cat := range s.Categories {
		out = append(out, cat.Name)
	}
	sort.Strings(out)
	return out
}

// CategoryOf returns the category a seed name belongs to, or "".
func (s *SeedSet) CategoryOf(seedName string) string {
	for _, cat := range s.Categories {
		for _, seed := range cat.Seeds {
			if seed.Name == seedName {
				return cat.Name
			}
		}
	}
	return ""
}

func (s *SeedSet) SeedCount() int {
	n := 0
	for _, cat := range s.Categories {
		n += len(cat.Seeds)
	}
	return n
}

// EmbeddingText is the text embedded for a seed: the name plus its curator
// definition when present, so anchors carry more meaning than a bare token.
func EmbeddingText(seed Seed) string {
	if strings.TrimSpace(seed.Definition) == "" {
		return seed.Name
	}
	return seed.Name + ": " + strings.TrimSpace(seed.Definition)
}
