package title

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A rewrite fixes one rendering artifact. Rewrites are total and run in
// the order of the rewrites slice.
type rewrite func(string) string

var rewrites = []rewrite{
	expandLigatures,
	fixUpperCase,
	fixWeirdCase,
	fixLetterSpacing,
	normalizeSpaces,
	joinHyphenated,
	trimPeriod,
	trimAsterisk,
	normalizeQuotes,
}

// Normalize runs every rewrite over s.
func Normalize(s string) string {
	for _, r := range rewrites {
		s = r(s)
	}
	return s
}

var ligatures = strings.NewReplacer(
	"ﬀ", "ff",
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬅ", "ft",
	"ﬆ", "st",
	"Ĳ", "IJ",
	"ĳ", "ij",
)

func expandLigatures(s string) string {
	return ligatures.Replace(s)
}

// titleCase capitalizes the first letter of every word and lowers the rest.
// Acronyms are not preserved. A Caser keeps state, so each call builds its
// own.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

const upperCaseRatio = 0.67

func isUpperCase(s string) bool {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters > 0 && float64(upper)/float64(letters) >= upperCaseRatio
}

func fixUpperCase(s string) string {
	if isUpperCase(s) {
		return titleCase(s)
	}
	return s
}

// hasInnerCapital reports whether a lower-case letter is directly followed
// by an upper-case one, as in "TiTLE".
func hasInnerCapital(word string) bool {
	prevLower := false
	for _, r := range word {
		if prevLower && unicode.IsUpper(r) {
			return true
		}
		prevLower = unicode.IsLower(r)
	}
	return false
}

func isWeirdCase(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	weird := 0
	for _, w := range words {
		if hasInnerCapital(w) {
			weird++
		}
	}
	return 2*weird >= len(words)
}

func fixWeirdCase(s string) string {
	if isWeirdCase(s) {
		return titleCase(s)
	}
	return s
}

const letterSpacingRatio = 0.2

func isLetterSpaced(s string) bool {
	var total, spaces int
	for _, r := range s {
		total++
		if unicode.IsSpace(r) {
			spaces++
		}
	}
	return total > 0 && float64(spaces)/float64(total) >= letterSpacingRatio
}

// fixLetterSpacing undoes extraction that put a space between every letter.
// All whitespace is dropped and words are split again before capitals.
func fixLetterSpacing(s string) string {
	if !isLetterSpaced(s) {
		return s
	}
	var sb strings.Builder
	var prev rune
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if prev != 0 && prev != '-' && unicode.IsUpper(r) {
			sb.WriteRune(' ')
		}
		sb.WriteRune(r)
		prev = r
	}
	return sb.String()
}

func normalizeSpaces(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, " :", ":")
}

var hyphenBreak = regexp.MustCompile(`(\S)-\s+`)

// joinHyphenated repairs "Self- Supervised", left over from a word
// hyphenated across lines. Trailing space is already gone, so a match is
// always followed by text.
func joinHyphenated(s string) string {
	return hyphenBreak.ReplaceAllString(s, "${1}-")
}

// trimPeriod drops one trailing period. A footnote asterisk after the
// period does not hide it.
func trimPeriod(s string) string {
	if strings.HasSuffix(s, ".*") {
		return strings.TrimSuffix(s, ".*") + "*"
	}
	return strings.TrimSuffix(s, ".")
}

func trimAsterisk(s string) string {
	return strings.TrimSuffix(s, "*")
}

var straightQuotes = regexp.MustCompile(`"([^"]*)"`)

// normalizeQuotes turns TeX-style `` '' pairs and straight double quotes
// into curly quotes.
func normalizeQuotes(s string) string {
	s = strings.ReplaceAll(s, "``", "“")
	s = strings.ReplaceAll(s, "''", "”")
	return straightQuotes.ReplaceAllString(s, "“${1}”")
}
