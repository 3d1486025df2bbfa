package vcard

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode names the policy used to turn raw file bytes into text.
// Both policies keep valid UTF-8 untouched and never fail; they differ only in
// what happens to bytes that are not part of a valid UTF-8 sequence.
type Decode string

const (
	// DecodeReplace turns every invalid byte into U+FFFD.
	DecodeReplace Decode = "replace"
	// DecodeLatin1 maps every invalid byte to its ISO-8859-1 code point
	// (U+0000..U+00FF). Non-ASCII names from legacy exports survive, at the
	// cost of misreading genuinely broken input.
	DecodeLatin1 Decode = "latin1"
)

// ParseDecode validates a policy name.
func ParseDecode(s string) (Decode, error) {
	switch d := Decode(strings.ToLower(s)); d {
	case DecodeReplace, DecodeLatin1:
		return d, nil
	}
	return "", fmt.Errorf("vcard: unknown decode policy %q (want %q or %q)", s, DecodeReplace, DecodeLatin1)
}

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeText coerces b to a string under policy d. A leading UTF-8 byte order
// mark is dropped. An unknown policy behaves like DecodeReplace.
func DecodeText(b []byte, d Decode) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			if d == DecodeLatin1 {
				sb.WriteRune(charmap.ISO8859_1.DecodeByte(b[0]))
			} else {
				sb.WriteRune(utf8.RuneError)
			}
		} else {
			sb.WriteRune(r)
		}
		b = b[size:]
	}
	return sb.String()
}
