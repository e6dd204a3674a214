package quality

import (
	"regexp"
	"strings"
)

// wordRe matches words of four or more characters; shorter tokens are mostly
// stopwords and inflate overlap.
var wordRe = regexp.MustCompile(`\b\w{4,}\b`)

// keywords extracts the lowercased keyword set of a text.
func keywords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		set[w] = struct{}{}
	}
	return set
}

// overlap returns the fraction of a's keywords that also appear in b,
// in [0,1]. An empty a yields 0. Used as a cheap proxy for "the candidate
// talks about the same things as its parent".
func overlap(a, b string) float64 {
	as := keywords(a)
	if len(as) == 0 {
		return 0
	}
	bs := keywords(b)
	hits := 0
	for w := range as {
		if _, ok := bs[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(as))
}

// scaled maps a fraction onto a weight, rounding down.
func scaled(fraction float64, weight int) int {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return int(fraction * float64(weight))
}
