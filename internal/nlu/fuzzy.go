package nlu

import "strings"

// similarity is a Ratcliff/Obershelp ratio over lowercased, trimmed input:
// twice the number of matching characters divided by the total length.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	m := matchingChars(a, b)
	return 2 * float64(m) / float64(len(a)+len(b))
}

// matchingChars counts matched characters by recursing around the longest
// common substring.
func matchingChars(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:ai], b[:bi])
	total += matchingChars(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

const (
	exactThreshold   = 0.95
	suggestThreshold = 0.6
)

// matchOrSuggest resolves a user-provided product name against known names.
// A near-exact hit is a match; a middling hit is only a suggestion the user
// should confirm; anything weaker is neither.
func matchOrSuggest(name string, products []string) (matched, suggestion string, score float64) {
	if name == "" || len(products) == 0 {
		return "", "", 0
	}
	best := ""
	bestScore := 0.0
	for _, p := range products {
		if s := similarity(name, p); s > bestScore {
			bestScore = s
			best = p
		}
	}

	switch {
	case bestScore >= exactThreshold:
		return best, "", bestScore
	case bestScore >= suggestThreshold:
		return "", best, bestScore
	}
	return "", "", bestScore
}

// similarProducts returns up to limit product names ranked by similarity.
func similarProducts(name string, products []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	all := make([]scored, 0, len(products))
	for _, p := range products {
		all = append(all, scored{p, similarity(name, p)})
	}
	// insertion sort by descending score; the lists here are tiny
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].score > all[j-1].score; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.name
	}
	return out
}
