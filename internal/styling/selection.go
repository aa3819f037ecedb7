package styling

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

// Selection is a half-open [Start, End) range of code-point offsets into a
// buffer.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Whole selects the entire buffer.
func Whole(buffer string) Selection {
	return Selection{Start: 0, End: utf8.RuneCountInString(buffer)}
}

// Len returns the number of code points covered.
func (s Selection) Len() int { return s.End - s.Start }

// Empty reports whether the selection covers nothing.
func (s Selection) Empty() bool { return s.Start == s.End }

// Validate checks 0 <= Start <= End <= length.
func (s Selection) Validate(length int) error {
	if s.Start < 0 || s.End < s.Start || s.End > length {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid selection [%d,%d) for buffer of length %d", s.Start, s.End, length), nil)
	}
	return nil
}

// Text returns the substring the selection denotes. It returns "" for an
// invalid selection.
func (s Selection) Text(buffer string) string {
	if s.Validate(utf8.RuneCountInString(buffer)) != nil {
		return ""
	}
	from, to := byteRange(buffer, s)
	return buffer[from:to]
}

// Splice replaces the selected span with fn applied to it:
//
//	buffer[0:start] + fn(buffer[start:end]) + buffer[end:]
//
// and returns the new buffer together with the code-point offset of the end
// of the replaced span, where the caller should place the cursor.
func Splice(buffer string, sel Selection, fn func(string) string) (string, int, error) {
	if err := sel.Validate(utf8.RuneCountInString(buffer)); err != nil {
		return buffer, 0, err
	}
	from, to := byteRange(buffer, sel)
	replaced := fn(buffer[from:to])

	var b strings.Builder
	b.Grow(from + len(replaced) + len(buffer) - to)
	b.WriteString(buffer[:from])
	b.WriteString(replaced)
	b.WriteString(buffer[to:])

	return b.String(), sel.Start + utf8.RuneCountInString(replaced), nil
}

// byteRange converts a validated code-point selection into byte offsets.
func byteRange(buffer string, sel Selection) (int, int) {
	from, to := len(buffer), len(buffer)
	idx := 0
	for i := range buffer {
		if idx == sel.Start {
			from = i
		}
		if idx == sel.End {
			to = i
			break
		}
		idx++
	}
	return from, to
}
