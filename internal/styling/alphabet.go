// Package styling maps plain Latin letters onto decorative Unicode alphabets
// (bold serif, monospace, italic) and back, and simulates underline with the
// combining low line.
package styling

import (
	"fmt"
	"strings"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

// Alphabet selects the letter-shape substitution applied by Encode.
type Alphabet int

const (
	AlphabetNone Alphabet = iota
	AlphabetBoldSerif
	AlphabetMonospace
)

func (a Alphabet) String() string {
	switch a {
	case AlphabetBoldSerif:
		return "bold-serif"
	case AlphabetMonospace:
		return "monospace"
	default:
		return "none"
	}
}

// ParseAlphabet accepts the canonical names plus the short forms used by the
// formatter toolbar ("bold", "mono").
func ParseAlphabet(name string) (Alphabet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "plain":
		return AlphabetNone, nil
	case "bold", "bold-serif", "bold_serif":
		return AlphabetBoldSerif, nil
	case "mono", "monospace":
		return AlphabetMonospace, nil
	}
	return AlphabetNone, apperrors.NewValidationError(fmt.Sprintf("unknown alphabet %q", name), nil)
}

func (a Alphabet) styleMap() *StyleMap {
	switch a {
	case AlphabetBoldSerif:
		return BoldSerif
	case AlphabetMonospace:
		return Monospace
	default:
		return nil
	}
}

// StyleMap is a bijection from the 52 Latin letters to one decorative
// alphabet. Every other rune maps to itself.
type StyleMap struct {
	name  string
	upper rune // styled 'A'
	lower rune // styled 'a'
	holes map[rune]rune
}

var (
	BoldSerif = &StyleMap{name: "bold-serif", upper: 0x1D400, lower: 0x1D41A}
	Monospace = &StyleMap{name: "monospace", upper: 0x1D670, lower: 0x1D68A}
	// U+1D455 is unassigned; the italic h lives in Letterlike Symbols.
	Italic = &StyleMap{name: "italic", upper: 0x1D434, lower: 0x1D44E, holes: map[rune]rune{'h': 0x210E}}
)

// reverse holds styled -> plain for every map, built once.
var reverse = buildReverse(BoldSerif, Monospace, Italic)

func buildReverse(maps ...*StyleMap) map[rune]rune {
	out := make(map[rune]rune, 52*len(maps))
	for _, m := range maps {
		for r := 'A'; r <= 'Z'; r++ {
			out[m.Map(r)] = r
		}
		for r := 'a'; r <= 'z'; r++ {
			out[m.Map(r)] = r
		}
	}
	return out
}

// Name returns the alphabet family name.
func (m *StyleMap) Name() string { return m.name }

// Map returns the styled code point for r, or r itself when r is not a Latin
// letter.
func (m *StyleMap) Map(r rune) rune {
	if styled, ok := m.holes[r]; ok {
		return styled
	}
	switch {
	case r >= 'A' && r <= 'Z':
		return m.upper + (r - 'A')
	case r >= 'a' && r <= 'z':
		return m.lower + (r - 'a')
	}
	return r
}

// Plain reports the Latin letter behind a styled code point produced by any
// of the maps.
func Plain(r rune) (rune, bool) {
	p, ok := reverse[r]
	return p, ok
}
