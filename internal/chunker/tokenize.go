package chunker

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Tokenize splits text into tokens on Unicode word boundaries (UAX #29).
// Whitespace segments are attached to the preceding token, so a token is a
// word or punctuation mark plus any whitespace that follows it.
// Detokenize(Tokenize(s)) == s for every string s.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var word string
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if isBlank(word) && len(tokens) > 0 {
			tokens[len(tokens)-1] += word
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Detokenize renders a token sequence back to text.
func Detokenize(tokens []string) string {
	return strings.Join(tokens, "")
}

// CountTokens returns the number of tokens Tokenize would produce for text.
func CountTokens(text string) int {
	return len(Tokenize(text))
}

// isBlank reports whether s consists only of whitespace.
func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
