package match

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// Legal suffixes carry no identity: "Archon Air Management Corp" and
// "Archon Air Management, Inc." are the same vendor to the catalog.
var legalSuffixes = []string{
	"incorporated", "corporation", "company", "limited",
	"corp", "inc", "llc", "ltd", "lp", "llp", "co",
}

var rePunct = regexp.MustCompile(`[^a-z0-9 ]+`)

// Normalize maps a vendor name to its comparison form: lower case,
// punctuation removed, trailing legal suffixes stripped, single spaces.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = rePunct.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	for changed := true; changed; {
		changed = false
		for _, suf := range legalSuffixes {
			if s == suf {
				continue
			}
			if strings.HasSuffix(s, " "+suf) {
				s = strings.TrimSuffix(s, " "+suf)
				changed = true
			}
		}
	}
	return s
}

// tokens returns the normalized name split into words.
func tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// tokenOverlap is the Jaccard-style overlap of two token sets: shared tokens
// over the size of the larger set. 1.0 for identical sets, 0.0 for disjoint.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		}
	}
	larger := len(set)
	if len(seen) > larger {
		larger = len(seen)
	}
	return float64(shared) / float64(larger)
}

// partialSimilarity aligns the shorter normalized name against every
// same-length window of the longer one and keeps the best edit similarity.
// Truncated catalog entries ("archon air" for "archon air management") score
// 1.0 here even though the whole-string comparison penalizes the missing
// words.
func partialSimilarity(a, b string) float64 {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if short == "" || short == long {
		return 0
	}
	if strings.Contains(long, short) {
		return 1
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if s := levenshtein.Similarity(short, long[i:i+len(short)], nil); s > best {
			best = s
		}
	}
	return best
}

// sharedPrefixLen is the length of the common leading run of two strings,
// used only to break exact score ties deterministically.
func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
