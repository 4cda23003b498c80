package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// Obfuscation characters commonly used to dodge keyword checks, mapped to
// their letter equivalents. Includes Cyrillic homoglyphs.
var obfuscationMap = map[string]string{
	"@": "a",
	"4": "a",
	"3": "e",
	"!": "i",
	"1": "i",
	"0": "o",
	"$": "s",
	"5": "s",
	"7": "t",
	"+": "t",
	"а": "a", // Cyrillic 'а'
	"е": "e", // Cyrillic 'е'
	"і": "i", // Cyrillic 'і'
	"о": "o", // Cyrillic 'о'
	"р": "p", // Cyrillic 'р'
}

var spaceRegex = regexp.MustCompile(`\s+`)

// Clean normalizes comment text to a canonical lowercase form so keyword
// heuristics see through common obfuscation (l33t substitutions, homoglyphs,
// repeated letters, stray punctuation).
func Clean(text string) string {
	cleaned := strings.ToLower(text)

	for old, repl := range obfuscationMap {
		cleaned = strings.ReplaceAll(cleaned, old, repl)
	}

	// Keep only letters; everything else becomes a word separator.
	var builder strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	cleaned = builder.String()

	cleaned = collapseRepeats(cleaned)

	cleaned = spaceRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// collapseRepeats reduces repeated letter characters to a single character.
// Only letters collapse, so word separation survives ("kiiilll" -> "kil").
func collapseRepeats(text string) string {
	if len(text) == 0 {
		return text
	}

	var result strings.Builder
	lastChar := rune(0)
	lastWasLetter := false

	for _, char := range text {
		isLetter := unicode.IsLetter(char)
		if isLetter && lastWasLetter && char == lastChar {
			continue
		}
		result.WriteRune(char)
		lastChar = char
		lastWasLetter = isLetter
	}

	return result.String()
}

// NormalizeHandle canonicalizes a platform username for comparison: trimmed,
// lowercased, with any leading "@" removed.
func NormalizeHandle(username string) string {
	u := strings.TrimSpace(strings.ToLower(username))
	return strings.TrimPrefix(u, "@")
}

// ContainsWord reports whether cleaned text contains the given canonical word
// or phrase. Single words must match on word boundaries ("skill" must not
// match "kill"); multi-word phrases match by containment.
func ContainsWord(cleanedText, word string) bool {
	if cleanedText == word {
		return true
	}
	if !strings.Contains(cleanedText, word) {
		return false
	}
	if len(strings.Fields(word)) > 1 {
		return true
	}
	for _, w := range strings.Fields(cleanedText) {
		if w == word {
			return true
		}
	}
	return false
}

// ContainsAnyWord checks cleaned text against a canonical dictionary and
// returns the matched entries.
func ContainsAnyWord(cleanedText string, words []string) (bool, []string) {
	var matched []string
	for _, w := range words {
		if ContainsWord(cleanedText, w) {
			matched = append(matched, w)
		}
	}
	return len(matched) > 0, matched
}
