package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestTable(t *testing.T) *IntentTable {
	t.Helper()
	table, err := LoadIntentTable("")
	require.NoError(t, err)
	return table
}

func TestLoadIntentTableEmbedded(t *testing.T) {
	table := loadTestTable(t)
	assert.NotEmpty(t, table.Intents)

	names := make(map[string]bool)
	for _, def := range table.Intents {
		names[def.Name] = true
	}
	for _, want := range []string{"search_products", "track_order", "register", "login", "contact_support"} {
		assert.True(t, names[want], "missing intent %s", want)
	}
}

func TestClassifyDeterministicPhrases(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	tests := []struct {
		text   string
		intent string
	}{
		{"hi", IntentGreeting},
		{"Hello", IntentGreeting},
		{"good morning", IntentGreeting},
		{"logout", IntentLogout},
		{"Sign Out", IntentLogout},
		{"help", IntentHelp},
		{"menu", IntentHelp},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			result := c.Classify(tt.text, nil)
			assert.Equal(t, tt.intent, result.Intent)
			assert.Equal(t, 1.0, result.Confidence)
		})
	}
}

func TestClassifyNumericMenuShortcuts(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	tests := map[string]string{
		"1": "search_products",
		"2": "view_cart",
		"3": "track_order",
		"4": "book_appointment",
		"5": "book_diagnostics",
		"6": "upload_prescription",
		"7": "contact_support",
		"8": IntentHelp,
	}
	for digit, intent := range tests {
		result := c.Classify(digit, nil)
		assert.Equal(t, intent, result.Intent, "digit %s", digit)
		assert.Equal(t, 1.0, result.Confidence)
	}

	// Out-of-range digits are not shortcuts
	assert.Equal(t, IntentUnknown, c.Classify("9", nil).Intent)
}

func TestClassifyWeightedScoring(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	result := c.Classify("track my order", nil)
	assert.Equal(t, "track_order", result.Intent)
	assert.True(t, result.RequiresAuth)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)

	result = c.Classify("i forgot my password", nil)
	assert.Equal(t, "password_reset", result.Intent)
	assert.False(t, result.RequiresAuth)
}

func TestClassifyEntityBoost(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	// The order_id entity pushes track_order above intents that only share
	// loose keywords
	entities := map[string]string{EntityOrderID: "12345"}
	result := c.Classify("status of 12345", entities)
	assert.Equal(t, "track_order", result.Intent)
	assert.Equal(t, "12345", result.Parameters[EntityOrderID])
}

func TestClassifyFuzzyKeyword(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	// "prescripton" is one edit away from "prescription"
	result := c.Classify("i have a prescripton to upload", nil)
	assert.Equal(t, "upload_prescription", result.Intent)
}

func TestClassifyUnknownOnZeroScore(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	result := c.Classify("the weather is nice in lagos", nil)
	assert.Equal(t, IntentUnknown, result.Intent)
	assert.Zero(t, result.Confidence)

	result = c.Classify("", nil)
	assert.Equal(t, IntentUnknown, result.Intent)
}

func TestClassifyDeterministicBeatsWeighted(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	// "help" is also a contact_support keyword; the tier-1 phrase must win
	result := c.Classify("help", nil)
	assert.Equal(t, IntentHelp, result.Intent)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestClassifyTieKeepsFirstEntry(t *testing.T) {
	table := &IntentTable{Intents: []IntentDefinition{
		{Name: "first", Patterns: []string{"ambiguous"}},
		{Name: "second", Patterns: []string{"ambiguous"}},
	}}
	c := NewClassifier(table)

	result := c.Classify("something ambiguous here", nil)
	assert.Equal(t, "first", result.Intent)
}

func TestScoreIntentWeights(t *testing.T) {
	def := &IntentDefinition{
		Patterns: []string{"track"},
		Keywords: []string{"delivery"},
		Entities: []string{EntityOrderID},
	}

	// Pattern only: +2
	score, max := scoreIntent(def, "track something", nil)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, (2.0+3.0+4.0)*1.5, max)

	// Pattern + keyword: (2+3) x 1.5
	score, _ = scoreIntent(def, "track my delivery", nil)
	assert.Equal(t, 7.5, score)

	// Everything: (2+3+4) x 1.5 == max
	score, max = scoreIntent(def, "track my delivery", map[string]string{EntityOrderID: "123"})
	assert.Equal(t, max, score)
}

func TestMenuIntent(t *testing.T) {
	name, ok := MenuIntent("3")
	assert.True(t, ok)
	assert.Equal(t, "track_order", name)

	_, ok = MenuIntent("track")
	assert.False(t, ok)
}

func TestClassifyCarriesEntitiesAsParameters(t *testing.T) {
	c := NewClassifier(loadTestTable(t))

	entities := ExtractEntities("book a cardiologist tomorrow at 3pm", time.Now())
	result := c.Classify("book a cardiologist tomorrow at 3pm", entities)
	assert.Equal(t, "book_appointment", result.Intent)
	assert.Equal(t, "cardiologist", result.Parameters[EntitySpecialty])
	assert.NotEmpty(t, result.Parameters[EntityDateTime])
}
