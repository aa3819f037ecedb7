package styling

import "github.com/rivo/uniseg"

// Boundaries returns the code-point offsets at which grapheme clusters start,
// plus the total length. An empty string yields [0].
func Boundaries(text string) []int {
	out := []int{0}
	g := uniseg.NewGraphemes(text)
	pos := 0
	for g.Next() {
		pos += len(g.Runes())
		out = append(out, pos)
	}
	return out
}

// VisibleLength counts grapheme clusters, so an underlined letter counts once.
func VisibleLength(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// SnapToGraphemes widens sel so neither end falls inside a grapheme cluster.
// An empty selection stays empty and moves back to the preceding boundary.
func SnapToGraphemes(text string, sel Selection) Selection {
	bounds := Boundaries(text)

	start := 0
	for _, b := range bounds {
		if b > sel.Start {
			break
		}
		start = b
	}
	if sel.Empty() {
		return Selection{Start: start, End: start}
	}

	end := bounds[len(bounds)-1]
	for _, b := range bounds {
		if b >= sel.End {
			end = b
			break
		}
	}
	return Selection{Start: start, End: end}
}
