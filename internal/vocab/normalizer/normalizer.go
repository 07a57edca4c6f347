package normalizer

import (
	"errors"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
)

// Staged resolution of a free-form extractor token onto the canonical
// vocabulary. Stages run fastest/most-exact first and the first hit wins;
// rejection is always preferred over guessing.

var (
	ErrEmptyToken        = errors.New("empty relationship type token")
	ErrReversedDirection = errors.New("reversed-direction relationship type")
	ErrAmbiguousMatch    = errors.New("ambiguous approximate match")
	ErrNoMatch           = errors.New("no canonical match")
)

// Canonical is one entry of the current canonical set, snapshot at call time.
type Canonical struct {
	Name     string
	Category string
}

type Config struct {
	// ApproxThreshold is the acceptance floor for the approximate stage.
	// Empirically derived (false positives were observed below 0.8); policy,
	// not structure, so it stays configurable.
	ApproxThreshold float64

	// ReversalSuffixes mark tokens naming the opposite semantic direction,
	// which must never collapse onto the forward type.
	ReversalSuffixes []string

	PrefixScore   float64
	ContainsScore float64
	StemScore     float64
}

func DefaultConfig() Config {
	return Config{
		ApproxThreshold:  0.8,
		ReversalSuffixes: []string{"_BY"},
		PrefixScore:      0.9,
		ContainsScore:    0.85,
		StemScore:        0.6,
	}
}

type Result struct {
	Name     string
	Category string
	Score    float64
	Stage    string
}

// CanonicalToken uppercases and collapses separators so extractor output
// compares against canonical names in a single form.
func CanonicalToken(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// Normalize is pure: for a fixed canonical set and config, the same input
// always yields the same output.
func Normalize(raw string, canon []Canonical, cfg Config) (Result, error) {
	token := CanonicalToken(raw)
	if token == "" {
		return Result{}, ErrEmptyToken
	}

	// Stage 1: exact.
	for _, c := range canon {
		if c.Name == token {
			return Result{Name: c.Name, Category: c.Category, Score: 1.0, Stage: "exact"}, nil
		}
	}

	// Stage 2: directional rejection. A reversed token indicates the
	// opposite direction regardless of how similar it looks to the forward
	// type.
	for _, suffix := range cfg.ReversalSuffixes {
		if suffix != "" && strings.HasSuffix(token, suffix) {
			return Result{}, ErrReversedDirection
		}
	}

	// Stage 3: token is a prefix of a canonical name; shortest canonical
	// wins so a generic token lands on the closest, not the most specific,
	// extension.
	if best, ok := pickPrefixMatch(token, canon); ok {
		return Result{Name: best.Name, Category: best.Category, Score: cfg.PrefixScore, Stage: "prefix"}, nil
	}

	// Stage 4: inverse of stage 3 - a canonical name is a prefix of the
	// token; longest canonical wins.
	if best, ok := pickContainsMatch(token, canon); ok {
		return Result{Name: best.Name, Category: best.Category, Score: cfg.ContainsScore, Stage: "contains"}, nil
	}

	// Stage 5: stem match, only when exactly one canonical stem agrees.
	if best, ok := pickStemMatch(token, canon); ok {
		return Result{Name: best.Name, Category: best.Category, Score: cfg.StemScore, Stage: "stem"}, nil
	}

	// Stage 6: approximate match over normalized edit distance.
	best, tied, score := pickApproxMatch(token, canon)
	if score > cfg.ApproxThreshold {
		if tied {
			return Result{}, ErrAmbiguousMatch
		}
		return Result{Name: best.Name, Category: best.Category, Score: score, Stage: "approx"}, nil
	}

	return Result{}, ErrNoMatch
}

func pickPrefixMatch(token string, canon []Canonical) (Canonical, bool) {
	var matches []Canonical
	for _, c := range canon {
		if len(c.Name) > len(token) && strings.HasPrefix(c.Name, token) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return Canonical{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) < len(matches[j].Name)
		}
		return matches[i].Name < matches[j].Name
	})
	return matches[0], true
}

func pickContainsMatch(token string, canon []Canonical) (Canonical, bool) {
	var matches []Canonical
	for _, c := range canon {
		if len(token) > len(c.Name) && strings.HasPrefix(token, c.Name) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return Canonical{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) > len(matches[j].Name)
		}
		return matches[i].Name < matches[j].Name
	})
	return matches[0], true
}

func pickStemMatch(token string, canon []Canonical) (Canonical, bool) {
	tokenStem := stemToken(token)
	var match Canonical
	count := 0
	for _, c := range canon {
		if stemToken(c.Name) == tokenStem {
			match = c
			count++
		}
	}
	return match, count == 1
}

// stemToken stems each underscore segment with the snowball English stemmer.
func stemToken(token string) string {
	segments := strings.Split(strings.ToLower(token), "_")
	for i, seg := range segments {
		stemmed, err := snowball.Stem(seg, "english", false)
		if err != nil || stemmed == "" {
			continue
		}
		segments[i] = stemmed
	}
	return strings.Join(segments, "_")
}

func pickApproxMatch(token string, canon []Canonical) (Canonical, bool, float64) {
	var (
		best      Canonical
		bestScore float64
		tied      bool
	)
	for _, c := range canon {
		score := similarity(token, c.Name)
		switch {
		case score > bestScore:
			best = c
			bestScore = score
			tied = false
		case score == bestScore && bestScore > 0 && c.Name != best.Name:
			tied = true
		}
	}
	return best, tied, bestScore
}

// similarity is edit distance normalized to [0,1] by the longer length.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := 0; j <= len(r2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minOf(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
