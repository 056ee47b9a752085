package answer

import (
	"regexp"
	"strconv"
)

// citationRe matches inline markers such as [1] or [12]. Grouped forms like
// [1, 2] are matched per number by citationListRe.
var (
	citationRe     = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)
	citationListRe = regexp.MustCompile(`\d+`)
)

// Citations returns the distinct source numbers cited in text, in order of
// first appearance. Numbers outside [1, maxSource] are dropped; pass
// maxSource <= 0 to keep every number.
func Citations(text string, maxSource int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		for _, digits := range citationListRe.FindAllString(m[1], -1) {
			n, err := strconv.Atoi(digits)
			if err != nil || n < 1 || (maxSource > 0 && n > maxSource) || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
