package citation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AlgorithmicKeywords are phrases typical of pseudocode and proofs.
// Each keyword present in the lower-cased text counts once.
var AlgorithmicKeywords = []string{
	"let ",
	"for i =",
	"for i >",
	"for j =",
	"for every",
	"as follows:",
	"construct",
	"recall that",
	"we now",
	"independently and uniformly",
}

// BiographicalPhrases are phrases from author biographies that get
// mistaken for references at the end of a paper.
var BiographicalPhrases = []string{
	"graduated from",
	"was born",
	"attended",
	"pursued a degree",
	"is an american",
	"currently resides",
	"majored in",
	"the person attended",
	"the person was born",
	"she graduated",
	"he graduated",
	"is a successful",
}

// TrustedVenueKeywords mark a venue string as a recognized academic outlet.
var TrustedVenueKeywords = []string{
	"proceedings",
	"conference",
	"journal",
	"nature",
	"science",
	"acm",
	"ieee",
	"springer",
	"elsevier",
	"arxiv",
}

// space matches any Unicode whitespace, including no-break spaces and the
// separators that scraped PDFs carry.
const space = `[\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]`

// Text patterns. All are applied to lower-cased text. Digits are any
// Unicode decimal digit. Patterns that need a word boundary are checked
// with wordBounded, since regexp's \b only knows ASCII.
var (
	latexSetPattern    = regexp.MustCompile(`\\` + space + `*\{`)
	latexScriptPattern = regexp.MustCompile(`[a-z]_[0-9{]|[a-z]\^[0-9{]`)
	letterRunPattern   = regexp.MustCompile(`[a-z]{3,}`)
	symbolPattern      = regexp.MustCompile(`[=+\-*/^_{}\[\]()]`)

	figurePattern     = regexp.MustCompile(`(?i)figure` + space + `+\p{Nd}+|fig\.` + space + `*\([a-z]\)`)
	tablePattern      = regexp.MustCompile(`(?i)table` + space + `+\p{Nd}+`)
	sampleSizePattern = regexp.MustCompile(`(?i)n` + space + `*=` + space + `*\p{Nd}{3,}`)
	subfigurePattern  = regexp.MustCompile(`\([a-d]\)` + space + `*\([a-d]\)`)
	hyperparamPattern = regexp.MustCompile(`(?i)-[a-z]\p{Nd}+-|[a-z]-[a-z]|\p{Nd}+k(?:` + space + `|$)`)
)

// isWordRune reports whether r belongs to a word: any letter, any number
// or an underscore.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

// wordBounded reports whether text[start:end] has no word rune directly
// before or after it.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// countWords counts runs of three or more ASCII letters that stand alone,
// so fragments of accented words such as "ber" in "über" do not count.
func countWords(text string) int {
	n := 0
	for _, loc := range letterRunPattern.FindAllStringIndex(text, -1) {
		if wordBounded(text, loc[0], loc[1]) {
			n++
		}
	}
	return n
}

// hasSampleSize reports an "n = 1234" style sample size where the n
// starts a word.
func hasSampleSize(text string) bool {
	for _, loc := range sampleSizePattern.FindAllStringIndex(text, -1) {
		if wordBounded(text, loc[0], loc[0]+1) {
			return true
		}
	}
	return false
}

// lower folds raw citation text to lower case. A dotted capital I keeps its
// dot as a combining mark, so "İ_1" does not become the subscript "i_1".
func lower(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "\u0130", "i\u0307"))
}
