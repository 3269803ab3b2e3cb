package domain

import (
	"regexp"
	"strings"
)

var (
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Generic corporate-suffix tokens that carry no entity identity.
var stopWords = map[string]struct{}{
	"bank":         {},
	"ltd":          {},
	"limited":      {},
	"corporation":  {},
	"corp":         {},
	"inc":          {},
	"incorporated": {},
}

// Normalize canonicalizes a free-text entity name for comparison: lowercase,
// punctuation stripped, whitespace collapsed, generic corporate suffixes
// removed. Idempotent; empty input yields an empty string.
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)
	name = punctRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " "))

	parts := strings.Split(name, " ")
	kept := parts[:0]
	for _, part := range parts {
		if _, ok := stopWords[part]; !ok && part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity returns an edit-distance ratio between 0 and 100. It is
// symmetric and deterministic for identical inputs.
func Similarity(a, b string) int {
	if a == b {
		return 100
	}
	lenSum := len(a) + len(b)
	if lenSum == 0 {
		return 100
	}
	dist := levenshtein(a, b)
	score := (lenSum - 2*dist) * 100 / lenSum
	if score < 0 {
		return 0
	}
	return score
}

func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
	}

	for i := 0; i <= len(s1); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				min(matrix[i][j-1]+1, matrix[i-1][j-1]+cost),
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}
