package chunker

import "unicode/utf8"

// Chunk splits text into overlapping chunks according to policy.
//
// The cursor starts at 0. Each step emits the window [start, start+size),
// clamped to the end of the input, then moves the cursor to
// start+size-overlap. Because overlap < size the cursor strictly increases,
// so the loop terminates for any finite input.
//
// Empty text yields a nil slice. Text shorter than the chunk size yields a
// single chunk equal to the input. The final chunk may be shorter than the
// chunk size; it is never padded or dropped.
func Chunk(text string, policy Policy) ([]string, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	switch policy.unit() {
	case UnitTokens:
		tokens := Tokenize(text)
		var chunks []string
		for _, w := range windows(len(tokens), policy.ChunkSize, policy.Overlap) {
			chunks = append(chunks, Detokenize(tokens[w[0]:w[1]]))
		}
		return chunks, nil

	default:
		runes := []rune(text)
		var chunks []string
		for _, w := range windows(len(runes), policy.ChunkSize, policy.Overlap) {
			chunks = append(chunks, string(runes[w[0]:w[1]]))
		}
		return chunks, nil
	}
}

// windows returns the [start, end) index pairs of the sliding window over a
// sequence of length n. size must be positive and overlap < size.
func windows(n, size, overlap int) [][2]int {
	var out [][2]int
	for start := 0; start < n; {
		end := start + size
		out = append(out, [2]int{start, min(end, n)})
		start = end - overlap
	}
	return out
}

// Measure returns the size of text in the given unit.
func Measure(text string, unit Unit) int {
	if unit == UnitTokens {
		return CountTokens(text)
	}
	return utf8.RuneCountInString(text)
}
