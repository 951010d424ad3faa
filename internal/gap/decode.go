package gap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest device name kept by the fallback decoder.
const MaxNameLength = 248

// DecodeName converts a Device Name value to text. Valid UTF-8 without NUL
// bytes is returned unchanged. Anything else is cut at MaxNameLength and at
// the first NUL, non-ASCII bytes become spaces, and surrounding whitespace
// is trimmed.
func DecodeName(value []byte) string {
	if utf8.Valid(value) && bytes.IndexByte(value, 0) < 0 {
		return string(value)
	}

	if len(value) > MaxNameLength {
		value = value[:MaxNameLength]
	}
	if i := bytes.IndexByte(value, 0); i >= 0 {
		value = value[:i]
	}

	buf := make([]byte, len(value))
	for i, b := range value {
		if b > 0x7F {
			b = ' '
		}
		buf[i] = b
	}
	return strings.Trim(string(buf), " \t\n\v\f\r")
}

// DecodeAppearance parses a 2-byte little-endian Appearance value.
func DecodeAppearance(value []byte) (uint16, error) {
	if len(value) != 2 {
		return 0, fmt.Errorf("%w: appearance length %d, want 2", ErrMalformedPayload, len(value))
	}
	return binary.LittleEndian.Uint16(value), nil
}
