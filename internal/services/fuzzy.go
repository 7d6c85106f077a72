package services

import "strings"

// normalizeText lowercases and trims a string for matching.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FuzzyScore returns a similarity score in [0, 1] between two strings.
// Exact match and containment short-circuit before the edit-distance
// computation; short strings are decided by those rules, not the matrix.
// Containment scores scale with the length ratio so "paracetamol" inside
// "paracetamol 500mg" lands between 0.9 and 0.95.
func FuzzyScore(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.9 + 0.05*float64(shorter)/float64(longer)
	}

	ra := []rune(a)
	rb := []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the unit-cost edit distance between two rune slices
// using the full dynamic-programming matrix.
func levenshtein(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	matrix := make([][]int, rows)
	for i := range matrix {
		matrix[i] = make([]int, cols)
		matrix[i][0] = i
	}
	for j := 1; j < cols; j++ {
		matrix[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}
	return matrix[rows-1][cols-1]
}
