package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var embeddedIntentTable []byte

// Intents produced outside the weighted table.
const (
	IntentUnknown   = "unknown"
	IntentGreeting  = "greeting"
	IntentLogout    = "logout"
	IntentHelp      = "help"
	IntentVerifyOTP = "verify_otp"
	IntentResendOTP = "resend_otp"
)

// keywordThreshold is the fuzzy similarity a token must clear to count as a
// keyword hit during scoring.
const keywordThreshold = 0.8

// IntentDefinition is one row of the weighted intent table.
type IntentDefinition struct {
	Name         string   `yaml:"name"`
	RequiresAuth bool     `yaml:"requires_auth"`
	Patterns     []string `yaml:"patterns"`
	Keywords     []string `yaml:"keywords"`
	Entities     []string `yaml:"entities"`
}

// IntentTable is the immutable classifier configuration, loaded once at boot
// and passed by reference. Nothing mutates it after LoadIntentTable returns.
type IntentTable struct {
	Intents []IntentDefinition `yaml:"intents"`
}

// LoadIntentTable parses the intent table from path, or from the embedded
// copy when path is empty.
func LoadIntentTable(path string) (*IntentTable, error) {
	raw := embeddedIntentTable
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read intent table %s: %w", path, err)
		}
		raw = data
	}

	var table IntentTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse intent table: %w", err)
	}
	if len(table.Intents) == 0 {
		return nil, fmt.Errorf("intent table is empty")
	}
	return &table, nil
}

// IntentResult is the classifier's verdict for one message.
type IntentResult struct {
	Intent       string
	Confidence   float64
	Parameters   map[string]string
	RequiresAuth bool
}

// menuIntents maps the single-digit menu shortcuts. Applied only when no
// pagination cursor or flow has claimed the digit first.
var menuIntents = map[string]string{
	"1": "search_products",
	"2": "view_cart",
	"3": "track_order",
	"4": "book_appointment",
	"5": "book_diagnostics",
	"6": "upload_prescription",
	"7": "contact_support",
	"8": IntentHelp,
}

var greetingPhrases = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}
var logoutPhrases = []string{"logout", "log out", "sign out"}
var helpPhrases = []string{IntentHelp, "menu", "what can you do"}

// Classifier scores normalized text against the fixed intent table.
type Classifier struct {
	table *IntentTable
}

// NewClassifier wraps an already-loaded intent table.
func NewClassifier(table *IntentTable) *Classifier {
	return &Classifier{table: table}
}

// Classify runs both tiers: deterministic phrases first (these can never be
// outscored), then the weighted table. Extracted entities are attached as
// parameters to whatever wins.
func (c *Classifier) Classify(text string, entities map[string]string) IntentResult {
	msg := normalizeText(text)
	msg = strings.Join(strings.Fields(msg), " ")

	if msg == "" {
		return IntentResult{Intent: IntentUnknown, Parameters: entities}
	}

	// Tier 1: deterministic high-precision rules
	if name, ok := c.deterministic(msg); ok {
		return IntentResult{
			Intent:       name,
			Confidence:   1.0,
			Parameters:   entities,
			RequiresAuth: c.requiresAuth(name),
		}
	}

	// Tier 2: weighted scoring, first table entry wins ties
	best := IntentResult{Intent: IntentUnknown, Parameters: entities}
	bestScore := 0.0
	for _, def := range c.table.Intents {
		score, maxScore := scoreIntent(&def, msg, entities)
		if score <= 0 || maxScore <= 0 {
			continue
		}
		if score > bestScore {
			bestScore = score
			confidence := score / maxScore
			if confidence > 1 {
				confidence = 1
			}
			best = IntentResult{
				Intent:       def.Name,
				Confidence:   confidence,
				Parameters:   entities,
				RequiresAuth: def.RequiresAuth,
			}
		}
	}
	return best
}

// deterministic resolves the tier-1 phrases and the numeric menu shortcuts.
func (c *Classifier) deterministic(msg string) (string, bool) {
	for _, phrase := range greetingPhrases {
		if msg == phrase {
			return IntentGreeting, true
		}
	}
	for _, phrase := range logoutPhrases {
		if msg == phrase {
			return IntentLogout, true
		}
	}
	for _, phrase := range helpPhrases {
		if msg == phrase {
			return IntentHelp, true
		}
	}
	if name, ok := menuIntents[msg]; ok {
		return name, true
	}
	return "", false
}

func (c *Classifier) requiresAuth(name string) bool {
	for _, def := range c.table.Intents {
		if def.Name == name {
			return def.RequiresAuth
		}
	}
	// greeting/help/logout and the menu targets fall back to the table;
	// anything not listed there is reachable without auth
	return false
}

// scoreIntent computes the weighted score for one table entry: +2 per
// literal pattern substring, +3 per keyword whose fuzzy similarity to a
// token clears the threshold, +4 per required entity present, total x1.5
// when at least one keyword matched.
func scoreIntent(def *IntentDefinition, msg string, entities map[string]string) (score, maxScore float64) {
	tokens := strings.Fields(msg)

	for _, pattern := range def.Patterns {
		if strings.Contains(msg, pattern) {
			score += 2
		}
	}

	keywordMatched := false
	for _, keyword := range def.Keywords {
		for _, token := range tokens {
			if FuzzyScore(token, keyword) >= keywordThreshold {
				score += 3
				keywordMatched = true
				break
			}
		}
	}

	for _, entity := range def.Entities {
		if _, ok := entities[entity]; ok {
			score += 4
		}
	}

	if keywordMatched {
		score *= 1.5
	}

	maxScore = (2*float64(len(def.Patterns)) + 3*float64(len(def.Keywords)) + 4*float64(len(def.Entities))) * 1.5
	return score, maxScore
}

// MenuIntent resolves a single-digit menu shortcut, for the dispatcher to
// apply after pagination and flows have declined the input.
func MenuIntent(text string) (string, bool) {
	name, ok := menuIntents[normalizeText(text)]
	return name, ok
}
