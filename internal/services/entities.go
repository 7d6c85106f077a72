package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Entity keys produced by ExtractEntities.
const (
	EntityOrderID   = "order_id"
	EntitySpecialty = "specialty"
	EntityQuantity  = "quantity"
	EntityDateTime  = "datetime"
	EntityProduct   = "product"
)

// DateTimeLayout is the canonical layout extracted datetimes are normalized
// to. Flow handlers parse extracted values with this single layout.
const DateTimeLayout = "2006-01-02 15:04"

var (
	brandOrderPattern   = regexp.MustCompile(`(?i)\bmedlane-\d+-\d+\b`)
	labeledOrderPattern = regexp.MustCompile(`(?i)\b(?:rx|order)\s*#?\s*(\d{3,})\b`)
	bareNumberPattern   = regexp.MustCompile(`\b\d{3,}\b`)
	alnumRefPattern     = regexp.MustCompile(`\b[A-Za-z]{2,}-?\d{3,}\b`)

	quantityPattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:x\s*)?(units?|packs?|tablets?|strips?|bottles?|boxes|box|capsules?|sachets?|pcs|pieces?)\b`)

	isoDatePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})[T ](\d{1,2}):(\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{2})\b`)
	naturalPattern   = regexp.MustCompile(`(?i)\b(today|tomorrow|next\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b(?:\s+at)?\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)

	productLeadPattern = regexp.MustCompile(`(?i)\b(?:want|need|find|buy|looking\s+for|search(?:ing)?\s+for|get\s+me)\b\s*(?:to\s+buy\s+)?(?:some\s+|a\s+|an\s+)?(.+)$`)
	productQtyPrefix   = regexp.MustCompile(`(?i)^\d{1,3}\s*(?:x\s*)?\w+\s+of\s+`)

	weekdays = map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
)

// specialtyVocabulary is the closed set of bookable specialties. Surface
// forms map to the canonical name stored on doctors.
var specialtyVocabulary = []struct {
	canonical string
	forms     []string
}{
	{"general practitioner", []string{"general practitioner", "general doctor", "physician"}},
	{"pediatrician", []string{"pediatrician", "paediatrician", "child doctor"}},
	{"dermatologist", []string{"dermatologist", "dermatology", "skin doctor"}},
	{"cardiologist", []string{"cardiologist", "cardiology", "heart doctor"}},
	{"gynecologist", []string{"gynecologist", "gynaecologist", "gynecology"}},
	{"dentist", []string{"dentist", "dental"}},
	{"ophthalmologist", []string{"ophthalmologist", "eye doctor"}},
	{"orthopedist", []string{"orthopedist", "orthopaedist", "orthopedic", "bone doctor"}},
	{"psychiatrist", []string{"psychiatrist", "psychiatry"}},
	{"neurologist", []string{"neurologist", "neurology"}},
	{"oncologist", []string{"oncologist", "oncology"}},
	{"urologist", []string{"urologist", "urology"}},
}

// ExtractEntities pulls structured values out of a free-text message.
// Datetime spans are masked before the order-id scan so date digits never
// turn into order references.
func ExtractEntities(text string, now time.Time) map[string]string {
	entities := make(map[string]string)
	normalized := normalizeText(text)
	if normalized == "" {
		return entities
	}

	masked := normalized
	if value, spans := extractDateTime(normalized, now); value != "" {
		entities[EntityDateTime] = value
		masked = maskSpans(normalized, spans)
	}

	if orderID := extractOrderID(masked); orderID != "" {
		entities[EntityOrderID] = orderID
	}
	if specialty := extractSpecialty(normalized); specialty != "" {
		entities[EntitySpecialty] = specialty
	}
	if quantity := extractQuantity(masked); quantity != "" {
		entities[EntityQuantity] = quantity
	}
	if product := extractProduct(normalized); product != "" {
		entities[EntityProduct] = product
	}

	return entities
}

// extractOrderID applies the order reference patterns in precedence order:
// brand composite, labeled number, bare number (longest wins), alphanumeric
// fallback.
func extractOrderID(text string) string {
	if match := brandOrderPattern.FindString(text); match != "" {
		return match
	}
	if match := labeledOrderPattern.FindStringSubmatch(text); match != nil {
		return match[1]
	}
	if matches := bareNumberPattern.FindAllString(text, -1); matches != nil {
		longest := matches[0]
		for _, m := range matches[1:] {
			if len(m) > len(longest) {
				longest = m
			}
		}
		return longest
	}
	return alnumRefPattern.FindString(text)
}

func extractSpecialty(text string) string {
	for _, entry := range specialtyVocabulary {
		for _, form := range entry.forms {
			if strings.Contains(text, form) {
				return entry.canonical
			}
		}
	}

	// Tolerate single-word typos like "dermatoligist". Short tokens are
	// skipped: containment scoring would let "a" match half the vocabulary.
	for _, token := range strings.Fields(text) {
		if len(token) < 5 {
			continue
		}
		for _, entry := range specialtyVocabulary {
			if FuzzyScore(token, entry.canonical) >= 0.85 {
				return entry.canonical
			}
		}
	}
	return ""
}

func extractQuantity(text string) string {
	if match := quantityPattern.FindStringSubmatch(text); match != nil {
		return match[1]
	}
	return ""
}

func extractProduct(text string) string {
	match := productLeadPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	clause := strings.Trim(match[1], " .,!?")
	clause = productQtyPrefix.ReplaceAllString(clause, "")
	if clause == "" {
		return ""
	}
	// A pure number after a buy verb is a selection or an order id, not a
	// product name.
	if strings.Trim(clause, "0123456789 ") == "" {
		return ""
	}
	return clause
}

// extractDateTime finds the first datetime mention and returns it in
// DateTimeLayout along with the matched spans.
func extractDateTime(text string, now time.Time) (string, [][]int) {
	if loc := isoDatePattern.FindStringSubmatchIndex(text); loc != nil {
		match := isoDatePattern.FindStringSubmatch(text)
		hour, _ := strconv.Atoi(match[2])
		value := fmt.Sprintf("%s %02d:%s", match[1], hour, match[3])
		if parsed, err := time.ParseInLocation(DateTimeLayout, value, now.Location()); err == nil {
			return parsed.Format(DateTimeLayout), [][]int{loc[0:2]}
		}
		return "", nil
	}

	if match := slashDatePattern.FindStringSubmatch(text); match != nil {
		loc := slashDatePattern.FindStringIndex(text)
		day, _ := strconv.Atoi(match[1])
		month, _ := strconv.Atoi(match[2])
		year, _ := strconv.Atoi(match[3])
		hour, _ := strconv.Atoi(match[4])
		minute, _ := strconv.Atoi(match[5])
		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
			return "", nil
		}
		parsed := time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location())
		return parsed.Format(DateTimeLayout), [][]int{loc}
	}

	if match := naturalPattern.FindStringSubmatch(text); match != nil {
		loc := naturalPattern.FindStringIndex(text)
		if parsed, ok := resolveNatural(match, now); ok {
			return parsed.Format(DateTimeLayout), [][]int{loc}
		}
	}

	return "", nil
}

// resolveNatural turns a (day word, hour, minute, meridiem) capture into a
// concrete time. Weekday names roll forward to the next occurrence, never
// resolving to today.
func resolveNatural(match []string, now time.Time) (time.Time, bool) {
	dayWord := strings.ToLower(strings.Join(strings.Fields(match[1]), " "))
	hour, _ := strconv.Atoi(match[2])
	minute := 0
	if match[3] != "" {
		minute, _ = strconv.Atoi(match[3])
	}
	meridiem := strings.ToLower(match[4])

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	default:
		// Without am/pm only a 24-hour value is unambiguous
		if hour > 23 {
			return time.Time{}, false
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	day := now
	switch {
	case dayWord == "today":
		// keep current day
	case dayWord == "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		name := strings.TrimSpace(strings.TrimPrefix(dayWord, "next"))
		target, ok := weekdays[strings.TrimSpace(name)]
		if !ok {
			return time.Time{}, false
		}
		offset := (int(target) - int(now.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		day = now.AddDate(0, 0, offset)
	}

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	return resolved, true
}

// ParseDateTime resolves a standalone datetime reply the same way the
// extractor does, for flow steps that ask for a time.
func ParseDateTime(text string, now time.Time) (time.Time, bool) {
	value, _ := extractDateTime(normalizeText(text), now)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(DateTimeLayout, value, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func maskSpans(text string, spans [][]int) string {
	out := []byte(text)
	for _, span := range spans {
		for i := span[0]; i < span[1] && i < len(out); i++ {
			out[i] = ' '
		}
	}
	return string(out)
}
