package command

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Invocation is one command call extracted from a line.
type Invocation struct {
	Name string
	Args []float32
}

// Parse splits line into invocations, in the order they must execute.
//
// Tokens are scanned right to left. Numeric tokens accumulate in an argument
// buffer; every other token is a command name that owns the numbers written
// to its left, up to the previous name. So "1 2 3 PUSH" calls PUSH with
// [1 2 3], "A B" calls B then A with no arguments, and numbers after the
// last name are dropped. The returned order is the scan order: rightmost
// name first.
func Parse(line string) []Invocation {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil
	}

	var (
		out     []Invocation
		pending string
		open    bool
		buf     []float32 // reversed
	)
	flush := func() {
		if open {
			args := slices.Clone(buf)
			slices.Reverse(args)
			out = append(out, Invocation{Name: pending, Args: args})
		}
		buf = buf[:0]
	}

	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if v, ok := parseNumber(tok); ok {
			buf = append(buf, v)
			continue
		}
		flush()
		pending, open = tok, true
	}
	flush()
	return out
}

// parseNumber parses tok as a 32-bit decimal float. Out-of-range values
// saturate to ±Inf rather than making the token a name. Hex floats are names.
func parseNumber(tok string) (float32, bool) {
	digits := strings.TrimLeft(tok, "+-")
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return float32(v), true
		}
		return 0, false
	}
	return float32(v), true
}
