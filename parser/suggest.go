package parser

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggestFunctionNames returns every name in candidates within
// maxDistance Levenshtein edits of name, closest first, for
// ParseError.UnknownFunction.
func suggestFunctionNames(name string, candidates []string, maxDistance int) []string {
	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(name, c)
		if d <= maxDistance {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
