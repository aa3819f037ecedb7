package styling

import (
	"fmt"
	"strings"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

// Operation is one formatter toolbar action.
type Operation string

const (
	OpBold      Operation = "bold"
	OpMono      Operation = "mono"
	OpItalic    Operation = "italic"
	OpUnderline Operation = "underline"
	OpReset     Operation = "reset"
	OpNormalize Operation = "normalize"
)

// Operations lists every supported action in toolbar order.
var Operations = []Operation{OpBold, OpItalic, OpUnderline, OpMono, OpReset, OpNormalize}

// ParseOperation normalises a toolbar action name.
func ParseOperation(name string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(name))); op {
	case OpBold, OpMono, OpItalic, OpUnderline, OpReset, OpNormalize:
		return op, nil
	case "monospace":
		return OpMono, nil
	case "clear", "plain", "decode":
		return OpReset, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown formatting operation %q", name), nil)
}

// Apply runs the operation over text.
func (op Operation) Apply(text string) string {
	switch op {
	case OpBold:
		return Encode(text, AlphabetBoldSerif)
	case OpMono:
		return Encode(text, AlphabetMonospace)
	case OpItalic:
		return ApplyItalic(text)
	case OpUnderline:
		return ApplyUnderline(text)
	case OpReset:
		return Decode(text)
	case OpNormalize:
		return Normalize(text)
	}
	return text
}

// ApplyToSelection splices the operation into buffer over sel.
func (op Operation) ApplyToSelection(buffer string, sel Selection) (string, int, error) {
	return Splice(buffer, sel, op.Apply)
}
