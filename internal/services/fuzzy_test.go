package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyScoreExactMatch(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "identical", a: "paracetamol", b: "paracetamol"},
		{name: "case insensitive", a: "Ibuprofen", b: "ibuprofen"},
		{name: "surrounding whitespace", a: " aspirin ", b: "aspirin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 1.0, FuzzyScore(tt.a, tt.b))
		})
	}
}

func TestFuzzyScoreContainment(t *testing.T) {
	score := FuzzyScore("paracetamol", "paracetamol 500mg")
	assert.GreaterOrEqual(t, score, 0.9)
	assert.LessOrEqual(t, score, 0.95)

	// Direction does not matter
	assert.Equal(t, score, FuzzyScore("paracetamol 500mg", "paracetamol"))

	// A longer shared prefix relative to the whole scores higher
	assert.Greater(t,
		FuzzyScore("vitamin c tablets", "vitamin c"),
		FuzzyScore("vitamin c tablets", "vitamin"))
}

func TestFuzzyScoreEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "classic kitten sitting", a: "kitten", b: "sitting", want: 1.0 - 3.0/7.0},
		{name: "single substitution", a: "helo", b: "hello", want: 0.8},
		{name: "dropped letter typo", a: "amoxicilin", b: "amoxicillin", want: 1.0 - 1.0/11.0},
		{name: "nothing in common", a: "xyz", b: "aspirin", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FuzzyScore(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFuzzyScoreEmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, FuzzyScore("", "aspirin"))
	assert.Equal(t, 0.0, FuzzyScore("aspirin", ""))
	assert.Equal(t, 0.0, FuzzyScore("", ""))
	assert.Equal(t, 0.0, FuzzyScore("   ", "aspirin"))
}

func TestLevenshteinMatrix(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{a: "kitten", b: "sitting", want: 3},
		{a: "flaw", b: "lawn", want: 2},
		{a: "track", b: "track", want: 0},
		{a: "a", b: "b", want: 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)), "%s vs %s", tt.a, tt.b)
	}
}
