// Package reference extracts legal-instrument identifiers from free text:
// Regulation/Directive citations, known acronyms, and CELEX-style ids.
// All functions are pure; recognized instruments live in data tables so the
// set is extensible without touching control flow.
package reference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// citationPattern pairs a regex with a normalizer over its submatches.
type citationPattern struct {
	re        *regexp.Regexp
	normalize func(m []string) string
}

var regulationPatterns = []citationPattern{
	{
		// "Regulation (EU) 2016/679", "Regulation (EC) No 1060/2009"
		re:        regexp.MustCompile(`(?i)\bRegulation\s+\(E[UC]\)\s+(?:No\.?\s+)?(\d{1,4})/(\d{1,4})`),
		normalize: func(m []string) string { return normalizeCitation("Regulation", m[1], m[2]) },
	},
	{
		// "Regulation 2016/679", "Regulation No 575/2013"
		re:        regexp.MustCompile(`(?i)\bRegulation\s+(?:No\.?\s+)?(\d{1,4})/(\d{1,4})`),
		normalize: func(m []string) string { return normalizeCitation("Regulation", m[1], m[2]) },
	},
}

var directivePatterns = []citationPattern{
	{
		re:        regexp.MustCompile(`(?i)\bDirective\s+\(E[UC]\)\s+(?:No\.?\s+)?(\d{1,4})/(\d{1,4})`),
		normalize: func(m []string) string { return normalizeCitation("Directive", m[1], m[2]) },
	},
	{
		re:        regexp.MustCompile(`(?i)\bDirective\s+(?:No\.?\s+)?(\d{1,4})/(\d{1,4})`),
		normalize: func(m []string) string { return normalizeCitation("Directive", m[1], m[2]) },
	},
}

// acronymExpansions maps well-known acronyms to their canonical instrument.
// A literal substring match of the key adds the expansion to the result set.
var acronymExpansions = map[string]string{
	"GDPR":     "Regulation (EU) 2016/679",
	"DORA":     "Regulation (EU) 2022/2554",
	"MiCA":     "Regulation (EU) 2023/1114",
	"NIS2":     "Directive (EU) 2022/2555",
	"DSA":      "Regulation (EU) 2022/2065",
	"DMA":      "Regulation (EU) 2022/1925",
	"AI Act":   "Regulation (EU) 2024/1689",
	"Data Act": "Regulation (EU) 2023/2854",
	"ePrivacy": "Directive 2002/58/EC",
	"MiFID II": "Directive 2014/65/EU",
	"MiFIR":    "Regulation (EU) No 600/2014",
}

// ExtractReferences returns the set of legal references found in text.
// The result is deduplicated; no ordering is guaranteed to callers.
func ExtractReferences(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var refs []string
	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, families := range [][]citationPattern{regulationPatterns, directivePatterns} {
		for _, p := range families {
			for _, m := range p.re.FindAllStringSubmatch(text, -1) {
				add(p.normalize(m))
			}
		}
	}

	for acronym, expansion := range acronymExpansions {
		if strings.Contains(text, acronym) {
			add(expansion)
		}
	}

	return refs
}

// normalizeCitation emits "<kind> <number>/<year>", deciding which captured
// component is the year. Post-2015 acts cite year first ("2016/679"), older
// acts number first ("575/2013"); a 4-digit value in a plausible year range
// wins, first component preferred when both qualify.
func normalizeCitation(kind, a, b string) string {
	number, year := a, b
	if looksLikeYear(a) {
		year, number = a, b
	}
	return fmt.Sprintf("%s %s/%s", kind, number, year)
}

func looksLikeYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 1958 && n <= 2099
}

// Instrument id patterns, in priority order: explicit CELEX prefix, bare
// CELEX shape, then "Regulation/Directive/Decision year/number" phrasing
// synthesised into a sector-3 id. First match wins.
var (
	celexPrefixed = regexp.MustCompile(`(?i)\bCELEX[:\s]+(\d{5}[A-Z]\d{4}(?:\(\d{2}\))?)`)
	celexBare     = regexp.MustCompile(`\b\d{5}[A-Z]\d{4}(?:\(\d{2}\))?`)
	actPhrasing   = regexp.MustCompile(`(?i)\b(Regulation|Directive|Decision)\b(?:\s+\(E[UC]\))?\s+(?:No\.?\s+)?(\d{1,4})/(\d{1,4})`)
)

var actTypeLetters = map[string]byte{
	"regulation": 'R',
	"directive":  'L',
	"decision":   'D',
}

// ExtractInstrumentID recognizes a single canonical instrument id in text.
// The second return value reports whether one was found.
func ExtractInstrumentID(text string) (string, bool) {
	if m := celexPrefixed.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), true
	}
	if m := celexBare.FindString(text); m != "" {
		return m, true
	}
	if m := actPhrasing.FindStringSubmatch(text); m != nil {
		letter, ok := actTypeLetters[strings.ToLower(m[1])]
		if !ok {
			return "", false
		}
		number, year := m[2], m[3]
		if looksLikeYear(number) && !looksLikeYear(year) {
			year, number = number, year
		}
		if !looksLikeYear(year) {
			return "", false
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("3%s%c%04d", year, letter, n), true
	}
	return "", false
}

// instrumentPrefixLen covers sector, year and type letter plus the leading
// digits of the act number, enough to identify the underlying instrument
// while tolerating corrigendum suffixes.
const instrumentPrefixLen = 9

// SameInstrument reports whether two instrument ids concern the same
// underlying act, comparing their type+number prefixes.
func SameInstrument(a, b string) bool {
	if len(a) < instrumentPrefixLen || len(b) < instrumentPrefixLen {
		return false
	}
	return a[:instrumentPrefixLen] == b[:instrumentPrefixLen]
}
