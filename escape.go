package recjson

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// unescape decodes the raw content of a string token, i.e. the bytes between
// the quotes.  On error it returns the offset within raw of the bad escape.
func unescape(raw []byte, lenient bool) (string, int, error) {
	// Common case: nothing to decode.
	i := 0
	for i < len(raw) && raw[i] != '\\' {
		i++
	}
	if i == len(raw) {
		return string(raw), 0, nil
	}

	out := make([]byte, 0, len(raw))
	out = append(out, raw[:i]...)
	for i < len(raw) {
		ch := raw[i]
		if ch != '\\' {
			out = append(out, ch)
			i++
			continue
		}
		if i+1 >= len(raw) {
			return "", i, fmt.Errorf("unterminated escape")
		}
		switch raw[i+1] {
		case '"', '\\', '/':
			out = append(out, raw[i+1])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\'':
			if !lenient {
				return "", i, fmt.Errorf("unknown escape '%c'", raw[i+1])
			}
			out = append(out, '\'')
		case 'u':
			r, n, err := readUnicodeEscape(raw[i:])
			if err != nil {
				return "", i, err
			}
			out = utf8.AppendRune(out, r)
			i += n
			continue
		default:
			return "", i, fmt.Errorf("unknown escape '%c'", raw[i+1])
		}
		i += 2
	}
	return string(out), 0, nil
}

// readUnicodeEscape decodes "\uXXXX", or a surrogate pair of two of them, at
// the start of b.  It returns the rune and the number of bytes consumed.
func readUnicodeEscape(b []byte) (rune, int, error) {
	r1, ok := hex4(b)
	if !ok {
		return 0, 0, fmt.Errorf("invalid unicode escape")
	}
	if !utf16.IsSurrogate(r1) {
		return r1, 6, nil
	}
	if len(b) >= 12 && b[6] == '\\' && b[7] == 'u' {
		if r2, ok := hex4(b[6:]); ok {
			if r := utf16.DecodeRune(r1, r2); r != utf8.RuneError {
				return r, 12, nil
			}
		}
	}
	return utf8.RuneError, 6, nil
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 6 {
		return 0, false
	}
	var r rune
	for _, c := range b[2:6] {
		switch {
		case c >= '0' && c <= '9':
			r = r<<4 | rune(c-'0')
		case c >= 'a' && c <= 'f':
			r = r<<4 | rune(c-'a'+10)
		case c >= 'A' && c <= 'F':
			r = r<<4 | rune(c-'A'+10)
		default:
			return 0, false
		}
	}
	return r, true
}

const hexDigits = "0123456789abcdef"

// appendQuoted appends s as a double-quoted JSON string.
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 0x20 && ch != '"' && ch != '\\' {
			continue
		}
		buf = append(buf, s[start:i]...)
		switch ch {
		case '"', '\\':
			buf = append(buf, '\\', ch)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[ch>>4], hexDigits[ch&0xf])
		}
		start = i + 1
	}
	buf = append(buf, s[start:]...)
	return append(buf, '"')
}
