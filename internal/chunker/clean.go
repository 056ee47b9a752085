package chunker

import (
	"strings"
	"unicode"
)

// Clean normalises whitespace in extracted text:
//   - a run of whitespace containing no newline becomes a single space
//   - a run of whitespace containing one or more newlines becomes a single "\n"
//   - leading and trailing whitespace is removed
//
// Clean is total and idempotent: Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inRun := false
	runHasNewline := false

	flush := func() {
		if !inRun {
			return
		}
		// Leading whitespace is dropped; trailing whitespace never reaches flush.
		if b.Len() > 0 {
			if runHasNewline {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		inRun = false
		runHasNewline = false
	}

	for _, r := range s {
		if unicode.IsSpace(r) {
			inRun = true
			if r == '\n' {
				runHasNewline = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}

	return b.String()
}
