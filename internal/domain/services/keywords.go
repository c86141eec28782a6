package services

import "strings"

// KeywordSet is a fixed, ordered set of lowercase keywords matched as substrings
type KeywordSet struct {
	words []string
}

// NewKeywordSet builds a set; duplicates are dropped so each word counts once
func NewKeywordSet(words ...string) KeywordSet {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return KeywordSet{words: out}
}

// CountDistinct returns how many set members occur in text. Repeats of the same
// member still count once.
func (k KeywordSet) CountDistinct(text string) int {
	count := 0
	for _, w := range k.words {
		if strings.Contains(text, w) {
			count++
		}
	}
	return count
}

// ContainsAny reports whether at least one member occurs in text
func (k KeywordSet) ContainsAny(text string) bool {
	for _, w := range k.words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Words returns a copy of the members in order
func (k KeywordSet) Words() []string {
	out := make([]string, len(k.words))
	copy(out, k.words)
	return out
}
