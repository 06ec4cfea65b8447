package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the largest edit distance still offered as a suggestion
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions caps the number of suggestions
	DefaultMaxSuggestions = 3
)

// FuzzyMatchOptions configures fuzzy matching behavior
type FuzzyMatchOptions struct {
	MaxDistance    int
	MaxSuggestions int
	CaseSensitive  bool
}

type suggestion struct {
	value    string
	distance int
}

// FindSimilar finds candidates close to target by Levenshtein distance, closest first
//
// Example:
//
//	FindSimilar("Camra", []string{"Camera", "Cabine", "Mast"}, nil)
//	// Returns: ["Camera"]
func FindSimilar(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	return findSimilar(target, candidates, func(s string) string { return s }, opts)
}

// SimilarClasses suggests class URIs whose local names are close to the local name of uri.
// Suggestions are returned in their short namespace#Name form.
func SimilarClasses(uri string, candidates []string, opts *FuzzyMatchOptions) []string {
	matches := findSimilar(localName(uri), candidates, localName, opts)
	for i, m := range matches {
		matches[i] = shortName(m)
	}
	return matches
}

func findSimilar(target string, candidates []string, key func(string) string, opts *FuzzyMatchOptions) []string {
	o := FuzzyMatchOptions{MaxDistance: DefaultMaxDistance, MaxSuggestions: DefaultMaxSuggestions}
	if opts != nil {
		o = *opts
	}
	if o.MaxDistance == 0 {
		o.MaxDistance = DefaultMaxDistance
	}
	if o.MaxSuggestions == 0 {
		o.MaxSuggestions = DefaultMaxSuggestions
	}

	if !o.CaseSensitive {
		target = strings.ToLower(target)
	}

	var suggestions []suggestion
	for _, candidate := range candidates {
		cmp := key(candidate)
		if !o.CaseSensitive {
			cmp = strings.ToLower(cmp)
		}
		if dist := LevenshteinDistance(target, cmp); dist <= o.MaxDistance {
			suggestions = append(suggestions, suggestion{value: candidate, distance: dist})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].distance < suggestions[j].distance
	})

	result := make([]string, 0, o.MaxSuggestions)
	for i := 0; i < len(suggestions) && i < o.MaxSuggestions; i++ {
		result = append(result, suggestions[i].value)
	}
	return result
}

// LevenshteinDistance returns the minimum number of single-rune edits turning s1 into s2
//
// Example:
//
//	LevenshteinDistance("kitten", "sitting") // Returns: 3
func LevenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func localName(uri string) string {
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func shortName(uri string) string {
	i := strings.LastIndex(uri, "#")
	if i < 0 {
		return uri
	}
	if j := strings.LastIndex(uri[:i], "/"); j >= 0 {
		return uri[j+1:]
	}
	return uri
}
