// Package slots turns loosely structured utterances into typed dialogue slots.
// Every extractor follows the same order: strict parse, then an ordered list
// of keyword rules where the first match wins.
package slots

import (
	"strconv"
	"strings"
	"unicode"
)

// Rule maps a predicate over normalized text to a slot value.
type Rule[T any] struct {
	Match func(normalized string) bool
	Value T
}

// Rules is evaluated in order; the first matching rule wins.
type Rules[T any] []Rule[T]

func (r Rules[T]) First(text string) (T, bool) {
	norm := Normalize(text)
	for _, rule := range r {
		if rule.Match != nil && rule.Match(norm) {
			return rule.Value, true
		}
	}
	var zero T
	return zero, false
}

// Phrases builds a rule that matches any of the phrases on word boundaries.
func Phrases[T any](value T, phrases ...string) Rule[T] {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := Normalize(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	return Rule[T]{
		Value: value,
		Match: func(text string) bool {
			for _, p := range normalized {
				if containsNormalized(text, p) {
					return true
				}
			}
			return false
		},
	}
}

// Normalize lowercases text, drops apostrophes and collapses everything
// except letters, digits and '$' into single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if r == '\'' || r == '’' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ContainsPhrase reports whether phrase occurs in text as whole words.
func ContainsPhrase(text, phrase string) bool {
	p := Normalize(phrase)
	if p == "" {
		return false
	}
	return containsNormalized(Normalize(text), p)
}

func containsNormalized(text, phrase string) bool {
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// ContainsAny reports whether any phrase occurs in text as whole words.
func ContainsAny(text string, phrases ...string) bool {
	norm := Normalize(text)
	for _, p := range phrases {
		if n := Normalize(p); n != "" && containsNormalized(norm, n) {
			return true
		}
	}
	return false
}

// LeadingInt parses the first whitespace token as an integer, ignoring
// trailing punctuation such as "1." or "2)".
func LeadingInt(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	tok := strings.TrimRightFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r)
	})
	tok = strings.TrimLeft(tok, "#")
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntInRange applies LeadingInt and bounds checking.
func IntInRange(text string, lo, hi int) (int, bool) {
	n, ok := LeadingInt(text)
	if !ok || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
