package styling

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// CombiningLowLine renders as an underline beneath the preceding character.
const CombiningLowLine = '\u0332'

// Mathematical Alphanumeric Symbols block.
const (
	mathAlnumFirst = 0x1D400
	mathAlnumLast  = 0x1D7FF
)

// Encode substitutes every Latin letter of text with its counterpart in the
// given alphabet. The output has exactly as many code points as the input.
func Encode(text string, alphabet Alphabet) string {
	m := alphabet.styleMap()
	if m == nil {
		return text
	}
	return m.Encode(text)
}

// Encode applies the map to every rune of text.
func (m *StyleMap) Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 4)
	eachRune(text, func(r rune, raw string) {
		if r == utf8.RuneError && len(raw) == 1 {
			b.WriteString(raw)
			return
		}
		b.WriteRune(m.Map(r))
	})
	return b.String()
}

// ApplyItalic is Encode fixed to the italic map.
func ApplyItalic(text string) string {
	return Italic.Encode(text)
}

// ApplyUnderline emits every rune of text followed by U+0332.
func ApplyUnderline(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 3)
	eachRune(text, func(_ rune, raw string) {
		b.WriteString(raw)
		b.WriteRune(CombiningLowLine)
	})
	return b.String()
}

// Decode turns styled letters produced by any map back into ASCII and strips
// every combining low line. Every other code point is kept as is, including
// decorative letters no map produces.
func Decode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	eachRune(text, func(r rune, raw string) {
		if r == CombiningLowLine {
			return
		}
		if plain, ok := reverse[r]; ok {
			b.WriteRune(plain)
			return
		}
		b.WriteString(raw)
	})
	return b.String()
}

// Normalize is Decode plus an NFKC fold of the remaining Mathematical
// Alphanumeric Symbols (bold italic, script, double-struck, digits, ...).
// Best effort for pasted pre-styled text; only runs when asked for.
func Normalize(text string) string {
	decoded := Decode(text)
	var b strings.Builder
	b.Grow(len(decoded))
	eachRune(decoded, func(r rune, raw string) {
		if r >= mathAlnumFirst && r <= mathAlnumLast {
			b.WriteString(norm.NFKC.String(raw))
			return
		}
		b.WriteString(raw)
	})
	return b.String()
}

// Style is one pass of the formatter. Alphabet and Italic are exclusive: when
// both are set the alphabet wins. Underline composes with either.
type Style struct {
	Alphabet  Alphabet
	Italic    bool
	Underline bool
}

// Apply runs the letter-shape layer first and the underline layer last.
func Apply(text string, s Style) string {
	switch {
	case s.Alphabet != AlphabetNone:
		text = Encode(text, s.Alphabet)
	case s.Italic:
		text = ApplyItalic(text)
	}
	if s.Underline {
		text = ApplyUnderline(text)
	}
	return text
}

// eachRune walks text keeping invalid bytes intact so transforms stay lossless
// on malformed input.
func eachRune(text string, fn func(r rune, raw string)) {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		fn(r, text[i:i+size])
		i += size
	}
}
