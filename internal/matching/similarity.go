// Package matching scores extracted item names against template catalogs.
package matching

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFC, trims, collapses whitespace and lowercases.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Lower(language.Und).String(s)
}

// BestMatchScore returns the highest similarity between s and any candidate.
func BestMatchScore(s string, candidates []string) float64 {
	a := Normalize(s)
	if a == "" {
		return 0
	}
	best := 0.0
	for _, c := range candidates {
		if score := score(a, Normalize(c)); score > best {
			best = score
			if best == 1 {
				break
			}
		}
	}
	return best
}

// score compares two normalized strings.
func score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	r := ratio(a, b)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return max(0.85, r)
	}

	best := max(r, tokenSortRatio(a, b))
	if overlap := tokenOverlap(a, b); overlap >= 0.5 {
		best = max(best, 0.75+0.2*overlap)
	}
	return best
}

// ratio is the Ratcliff/Obershelp similarity 2*M/T over runes, where M is the
// number of characters in recursively found longest common blocks.
func ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ar, br)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	i, j, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+size:], b[j+size:])
}

// longestCommonBlock finds the longest common substring, preferring the
// earliest start in a and then in b.
func longestCommonBlock(a, b []rune) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	bestI, bestJ, bestSize := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					bestI, bestJ = i-cur[j], j-cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestSize
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// tokenOverlap is |A∩B| / max(|A|,|B|) over distinct tokens.
func tokenOverlap(a, b string) float64 {
	as, bs := tokenSet(a), tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for t := range as {
		if _, ok := bs[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(max(len(as), len(bs)))
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}
