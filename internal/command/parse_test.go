package command

import (
	"math"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Invocation
	}{
		{name: "empty", line: "", want: nil},
		{name: "whitespace only", line: " \t \n", want: nil},
		{name: "numbers only", line: "1 2 3", want: nil},
		{
			name: "args precede name",
			line: "1.0 2.0 3.0 ADD_FORCE_TO_BALL",
			want: []Invocation{{Name: "ADD_FORCE_TO_BALL", Args: []float32{1, 2, 3}}},
		},
		{
			name: "bare name",
			line: "TICK",
			want: []Invocation{{Name: "TICK"}},
		},
		{
			name: "adjacent names fire rightmost first",
			line: "4 5 A B",
			want: []Invocation{{Name: "B"}, {Name: "A", Args: []float32{4, 5}}},
		},
		{
			name: "trailing numbers are dropped",
			line: "1 A 7 8",
			want: []Invocation{{Name: "A", Args: []float32{1}}},
		},
		{
			name: "each name owns its own args",
			line: "1 2 A 3 B",
			want: []Invocation{{Name: "B", Args: []float32{3}}, {Name: "A", Args: []float32{1, 2}}},
		},
		{
			name: "mixed whitespace and notation",
			line: "\t-1e2   +0.5\n.25 MOVE ",
			want: []Invocation{{Name: "MOVE", Args: []float32{-100, 0.5, 0.25}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if !equalInvocations(got, tt.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseNumberEdgeCases(t *testing.T) {
	got := Parse("1e39 -1e39 inf NaN SET")
	if len(got) != 1 || got[0].Name != "SET" || len(got[0].Args) != 4 {
		t.Fatalf("Parse = %+v, want SET with four args", got)
	}
	args := got[0].Args
	if !math.IsInf(float64(args[0]), 1) || !math.IsInf(float64(args[1]), -1) || !math.IsInf(float64(args[2]), 1) {
		t.Fatalf("overflowing and inf tokens = %v, want +Inf -Inf +Inf", args[:3])
	}
	if !math.IsNaN(float64(args[3])) {
		t.Fatalf("NaN token parsed as %v", args[3])
	}

	// Tokens that merely start like numbers are names.
	got = Parse("1 2x 3")
	if len(got) != 1 || got[0].Name != "2x" || !slices.Equal(got[0].Args, []float32{1}) {
		t.Fatalf("Parse(1 2x 3) = %+v, want 2x([1])", got)
	}

	// Hex floats are not numbers.
	got = Parse("0x1p3 0x_1p0 -0X1 NAME")
	want := []Invocation{{Name: "NAME"}, {Name: "-0X1"}, {Name: "0x_1p0"}, {Name: "0x1p3"}}
	if !equalInvocations(got, want) {
		t.Fatalf("Parse(hex floats) = %+v, want %+v", got, want)
	}
}

func equalInvocations(a, b []Invocation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !slices.Equal(a[i].Args, b[i].Args) {
			return false
		}
	}
	return true
}
