// Package analyzer provides code-aware term extraction for the codebase
// search engine's lexical index. It is a from-scratch tokenizer in the
// spirit of the boundary-scanning CodeTokenizer and the CamelCaseFilter /
// SnakeCaseFilter token filters, collapsed into a single pass that yields
// lowercased terms directly rather than going through a separate analysis
// pipeline.
package analyzer

import (
	"iter"
	"strings"
	"unicode"
)

// stopwords is a small, language-tag dependent list of terms suppressed
// from the token stream. Kept intentionally short: over-aggressive
// stopwording hurts recall in source code, where words like "get" or "set"
// carry signal.
var stopwords = map[string]map[string]struct{}{
	"": { // default / language-agnostic
		"the": {}, "a": {}, "an": {}, "is": {}, "and": {}, "or": {},
	},
	"python": {
		"the": {}, "a": {}, "an": {}, "is": {}, "and": {}, "or": {},
		"self": {}, "def": {},
	},
	"go": {
		"the": {}, "a": {}, "an": {}, "is": {}, "and": {}, "or": {},
		"func": {}, "var": {},
	},
}

func stopwordSet(languageTag string) map[string]struct{} {
	if set, ok := stopwords[languageTag]; ok {
		return set
	}
	return stopwords[""]
}

// minTermLength is the shortest term preserved in the output stream.
const minTermLength = 2

// Tokenize returns a lazy, deterministic sequence of lowercased terms
// extracted from text. It splits on non-alphanumeric boundaries, further
// splits identifier runs on camelCase and snake_case boundaries, and emits
// both the compound identifier and its component parts (e.g. getUserAuth
// yields getuserauth, get, user, auth). The same input with the same
// languageTag always yields the same sequence in the same order.
func Tokenize(text string, languageTag string) iter.Seq[string] {
	stop := stopwordSet(languageTag)
	return func(yield func(string) bool) {
		for _, run := range identifierRuns(text) {
			if !emitTerm(run, stop, yield) {
				return
			}
			if len(run) <= minTermLength {
				continue
			}
			for _, part := range splitIdentifier(run) {
				if !emitTerm(part, stop, yield) {
					return
				}
			}
		}
	}
}

// emitTerm lowercases term, filters by minimum length and stopword set, and
// yields it. Returns false if the consumer asked to stop.
func emitTerm(term string, stop map[string]struct{}, yield func(string) bool) bool {
	if len(term) < minTermLength {
		return true
	}
	lower := strings.ToLower(term)
	if _, isStop := stop[lower]; isStop {
		return true
	}
	return yield(lower)
}

// identifierRuns splits text into maximal runs of letters, digits, and
// underscores, discarding everything else (operators, punctuation,
// whitespace). The underscore stays part of the run so a snake_case
// identifier survives intact as a single compound term; splitIdentifier is
// what later breaks it into its component words.
func identifierRuns(text string) []string {
	var runs []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			runs = append(runs, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// splitIdentifier splits a single identifier run into its snake_case
// segments (on underscore boundaries) and, within each segment, its
// camelCase/digit component parts. Digit runs are treated as their own
// boundary so that "parseV2Config" yields parse, v2, config style parts
// without merging the digit into the previous word incorrectly. Returns nil
// when the run has nothing to split (a single word with no underscore,
// case, or digit boundary), since the caller already emits the run itself.
func splitIdentifier(s string) []string {
	runes := []rune(s)
	if len(runes) <= 1 {
		return nil
	}

	var segments []string
	var b strings.Builder
	for _, r := range runes {
		if r == '_' {
			if b.Len() > 0 {
				segments = append(segments, b.String())
				b.Reset()
			}
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		segments = append(segments, b.String())
	}
	if len(segments) == 0 {
		return nil
	}

	var parts []string
	for _, seg := range segments {
		parts = append(parts, splitCaseDigit([]rune(seg))...)
	}

	if len(parts) == 1 && parts[0] == s {
		return nil
	}
	return parts
}

// splitCaseDigit splits one underscore-free segment on camelCase and
// digit/letter boundaries.
func splitCaseDigit(runes []rune) []string {
	if len(runes) == 0 {
		return nil
	}

	boundaries := []int{0}
	for i := 1; i < len(runes); i++ {
		if isCaseBoundary(runes, i) || isDigitBoundary(runes, i) {
			boundaries = append(boundaries, i)
		}
	}

	parts := make([]string, 0, len(boundaries))
	for i, start := range boundaries {
		end := len(runes)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// isCaseBoundary implements camelCase splitting: a boundary exists where
// a lowercase-to-uppercase transition occurs (handleError ->
// handle|Error), or where an uppercase run ends before a lowercase letter
// (XMLParser -> XML|Parser).
func isCaseBoundary(runes []rune, i int) bool {
	curr := runes[i]
	prev := runes[i-1]

	if !unicode.IsUpper(prev) && unicode.IsUpper(curr) {
		return true
	}
	if unicode.IsUpper(prev) && unicode.IsUpper(curr) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}

// isDigitBoundary reports a boundary where a run of digits is followed by a
// non-digit, so a numeric suffix stays with the word it ends (V2 in
// parseV2Config, utf8) instead of being split off as a separate token.
func isDigitBoundary(runes []rune, i int) bool {
	curr := runes[i]
	prev := runes[i-1]
	return unicode.IsDigit(prev) && !unicode.IsDigit(curr)
}

// Terms collects a Tokenize sequence into a slice. Convenience wrapper for
// callers that need random access (e.g. building a term-frequency map)
// rather than streaming consumption.
func Terms(text string, languageTag string) []string {
	var out []string
	for term := range Tokenize(text, languageTag) {
		out = append(out, term)
	}
	return out
}

// TermFrequencies tokenizes text and returns a term -> count map, the
// document length (sum of counts) as understood by the TF-IDF core.
func TermFrequencies(text string, languageTag string) (map[string]int, int) {
	tf := make(map[string]int)
	length := 0
	for term := range Tokenize(text, languageTag) {
		tf[term]++
		length++
	}
	return tf, length
}
