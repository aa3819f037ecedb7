package styling

import (
	"reflect"
	"testing"
)

func TestBoundaries(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", []int{0}},
		{"abc", []int{0, 1, 2, 3}},
		{ApplyUnderline("ab"), []int{0, 2, 4}},
		{"e\u0301x", []int{0, 2, 3}},
	}
	for _, tt := range tests {
		if got := Boundaries(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Boundaries(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSnapToGraphemes(t *testing.T) {
	underlined := ApplyUnderline("abc") // a_ b_ c_ : six code points

	tests := []struct {
		name string
		in   Selection
		want Selection
	}{
		{"aligned", Selection{2, 4}, Selection{2, 4}},
		{"start inside cluster", Selection{1, 4}, Selection{0, 4}},
		{"end inside cluster", Selection{2, 3}, Selection{2, 4}},
		{"both inside", Selection{3, 5}, Selection{2, 6}},
		{"empty inside cluster", Selection{3, 3}, Selection{2, 2}},
		{"whole", Selection{0, 6}, Selection{0, 6}},
	}
	for _, tt := range tests {
		if got := SnapToGraphemes(underlined, tt.in); got != tt.want {
			t.Errorf("%s: SnapToGraphemes(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestVisibleLength(t *testing.T) {
	if got := VisibleLength(ApplyUnderline("Hello")); got != 5 {
		t.Fatalf("underlined Hello visible length = %d, want 5", got)
	}
	if got := VisibleLength(Encode("Hello", AlphabetBoldSerif)); got != 5 {
		t.Fatalf("bold Hello visible length = %d, want 5", got)
	}
}
