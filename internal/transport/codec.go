package transport

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedPayload is returned when a payload does not decode.
var ErrMalformedPayload = errors.New("malformed payload")

// Payloads are length-prefixed: an unsigned LEB128 varint count followed by
// UTF-8 bytes (text) or little-endian IEEE-754 float32s (values).

// EncodeText serializes a command line.
func EncodeText(s string) []byte {
	return protowire.AppendString(nil, s)
}

// DecodeText parses a payload produced by EncodeText.
func DecodeText(b []byte) (string, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", fmt.Errorf("%w: text: %v", ErrMalformedPayload, protowire.ParseError(n))
	}
	if n != len(b) {
		return "", fmt.Errorf("%w: text: %d trailing bytes", ErrMalformedPayload, len(b)-n)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrMalformedPayload)
	}
	return s, nil
}

// EncodeValues serializes a result sequence. An empty or nil sequence
// encodes as a single zero count byte.
func EncodeValues(vs []float32) []byte {
	b := protowire.AppendVarint(make([]byte, 0, 1+4*len(vs)), uint64(len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

// DecodeValues parses a payload produced by EncodeValues.
func DecodeValues(b []byte) ([]float32, error) {
	count, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, fmt.Errorf("%w: values: %v", ErrMalformedPayload, protowire.ParseError(n))
	}
	b = b[n:]
	if count > uint64(len(b))/4 || uint64(len(b)) != 4*count {
		return nil, fmt.Errorf("%w: values: count %d does not match %d bytes", ErrMalformedPayload, count, len(b))
	}
	out := make([]float32, 0, count)
	for len(b) > 0 {
		bits, m := protowire.ConsumeFixed32(b)
		if m < 0 {
			return nil, fmt.Errorf("%w: values: %v", ErrMalformedPayload, protowire.ParseError(m))
		}
		out = append(out, math.Float32frombits(bits))
		b = b[m:]
	}
	return out, nil
}
