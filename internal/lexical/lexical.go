// Package lexical turns free-form shopping utterances into a structured
// command: an item quantity, an optional package weight, and a cleaned
// catalog search phrase.
package lexical

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyQuery is returned when nothing searchable remains after stripping
// quantities, weights, and filler words.
var ErrEmptyQuery = errors.New("lexical: empty query after stripping")

// Command is the parsed form of a single add-style utterance.
type Command struct {
	Quantity int    // item count, defaults to 1
	Weight   string // normalized package size ("500g", "1kg", "1L"), empty if none
	Query    string // cleaned search phrase
}

var (
	numberWordRe = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten|a|an)\b`)
	integerRe    = regexp.MustCompile(`\b(\d+)\b`)
	// A bare integer directly followed by one of these is a weight literal
	// ("500g"), not an item quantity.
	unitPrefixRe = regexp.MustCompile(`(?i)^(ml|g|kg|l|litre|liter|gm|grm|gms|gram|grams)`)
	weightRe     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kilograms?|kgs?|grams?|grms?|gms?|gm?|g|liters?|litres?|ml|l|packets?|packs?|pcs?)\b`)
	stopWordRe   = regexp.MustCompile(`(?i)\b(add|buy|get|i want|need|quantity|qty|of|packets?|packs?|items?|pieces?|pcs?|and|please)\b`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"a": 1, "an": 1, // "add a milk" -> "add 1 milk"
}

// NormalizeNumbers replaces spelled-out quantities with digits. Matching is
// whole-word and case-insensitive so substrings are never corrupted
// ("banana" stays intact).
func NormalizeNumbers(text string) string {
	return numberWordRe.ReplaceAllStringFunc(text, func(match string) string {
		if n, ok := numberWords[strings.ToLower(match)]; ok {
			return strconv.Itoa(n)
		}
		return match
	})
}

// Extract parses one utterance into a Command. The raw text is first
// number-normalized, then mined for a quantity and a weight expression, and
// finally stripped of filler words to yield the search phrase.
//
// An integer immediately followed by a unit ("500g") is part of a weight
// expression and must not be consumed as a quantity.
func Extract(raw string) (Command, error) {
	s := NormalizeNumbers(strings.TrimSpace(raw))

	cmd := Command{Quantity: 1}

	if loc := integerRe.FindStringIndex(s); loc != nil {
		lookAhead := strings.TrimSpace(s[loc[1]:])
		if !unitPrefixRe.MatchString(lookAhead) {
			if n, err := strconv.Atoi(s[loc[0]:loc[1]]); err == nil {
				cmd.Quantity = n
			}
			s = s[:loc[0]] + s[loc[1]:]
		}
	}

	if m := weightRe.FindStringSubmatchIndex(s); m != nil {
		value := s[m[2]:m[3]]
		unit := strings.ToLower(s[m[4]:m[5]])
		cmd.Weight = canonicalWeight(value, unit)
		s = s[:m[0]] + s[m[1]:]
	}

	cleaned := stopWordRe.ReplaceAllString(s, "")
	cleaned = strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
	cmd.Query = cleaned

	if cleaned == "" {
		return cmd, ErrEmptyQuery
	}
	return cmd, nil
}

// canonicalWeight collapses unit spellings and folds thousand-gram and
// thousand-millilitre expressions onto the next unit up.
func canonicalWeight(value, unit string) string {
	switch {
	case strings.HasPrefix(unit, "k"):
		unit = "kg"
	case strings.HasPrefix(unit, "g"):
		unit = "g"
	case strings.HasPrefix(unit, "m"):
		unit = "ml"
	case unit == "l" || strings.HasPrefix(unit, "lit"):
		unit = "l"
	}

	key := value + unit
	switch {
	case key == "1000g":
		return "1kg"
	case key == "1000ml":
		return "1L"
	case strings.EqualFold(key, "1l"):
		return "1L"
	}
	return key
}
