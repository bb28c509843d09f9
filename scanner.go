package recjson

import (
	"bytes"
	"errors"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokBeginObject
	tokEndObject
	tokBeginArray
	tokEndArray
	tokNameSep
	tokValueSep
	tokString
	tokNumber
	tokWord // true, false, null, or an unquoted name in lenient mode
	tokRef  // bare #c:p, lenient mode only
)

// token is a lexical token.  For strings, raw is the content between the
// quotes, still escaped.
type token struct {
	kind    tokenKind
	off     int
	raw     []byte
	escaped bool
}

type scanner struct {
	data    []byte
	pos     int
	lenient bool
}

func (s *scanner) skipWS() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) atEOF() bool {
	s.skipWS()
	return s.pos >= len(s.data)
}

func (s *scanner) parseError(off int, msg string) *ParseError {
	return newParseError(s.data, off, nil, "%s", msg)
}

func (s *scanner) next() (token, error) {
	s.skipWS()
	if s.pos >= len(s.data) {
		return token{kind: tokEOF, off: s.pos}, nil
	}
	start := s.pos
	ch := s.data[start]
	switch ch {
	case '{':
		s.pos++
		return token{kind: tokBeginObject, off: start}, nil
	case '}':
		s.pos++
		return token{kind: tokEndObject, off: start}, nil
	case '[':
		s.pos++
		return token{kind: tokBeginArray, off: start}, nil
	case ']':
		s.pos++
		return token{kind: tokEndArray, off: start}, nil
	case ':':
		s.pos++
		return token{kind: tokNameSep, off: start}, nil
	case ',':
		s.pos++
		return token{kind: tokValueSep, off: start}, nil
	case '"':
		return s.scanString(ch)
	case '\'':
		if s.lenient {
			return s.scanString(ch)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return s.scanNumber()
	case '#':
		if s.lenient {
			return s.scanRef()
		}
	default:
		if isWordStart(ch) {
			return s.scanWord(), nil
		}
	}
	return token{}, s.parseError(start, "unexpected character")
}

// scanString finds the closing quote: the first quote preceded by an even
// number of backslashes.
func (s *scanner) scanString(quote byte) (token, error) {
	start := s.pos
	escaped := false
	i := start + 1
	for i < len(s.data) {
		switch ch := s.data[i]; {
		case ch == '\\':
			escaped = true
			i += 2
			continue
		case ch == quote:
			s.pos = i + 1
			return token{kind: tokString, off: start, raw: s.data[start+1 : i], escaped: escaped}, nil
		case ch < 0x20 && !s.lenient:
			return token{}, s.parseError(i, "control character in string")
		}
		i++
	}
	return token{}, s.parseError(start, "unterminated string")
}

func (s *scanner) scanNumber() (token, error) {
	start := s.pos
	i := start
LOOP:
	for ; i < len(s.data); i++ {
		switch s.data[i] {
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '-', '+', '.', 'e', 'E':
		default:
			break LOOP
		}
	}
	raw := s.data[start:i]
	if !validNumber(raw) {
		return token{}, s.parseError(start, "invalid number")
	}
	s.pos = i
	return token{kind: tokNumber, off: start, raw: raw}, nil
}

// validNumber checks the JSON number grammar:
// -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?
func validNumber(b []byte) bool {
	i := 0
	if i < len(b) && b[i] == '-' {
		i++
	}
	switch {
	case i < len(b) && b[i] == '0':
		i++
	case i < len(b) && b[i] >= '1' && b[i] <= '9':
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(b) && b[i] == '.' {
		i++
		if i >= len(b) || !isDigit(b[i]) {
			return false
		}
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		if i >= len(b) || !isDigit(b[i]) {
			return false
		}
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	}
	return i == len(b)
}

func (s *scanner) scanRef() (token, error) {
	start := s.pos
	i := start + 1
	for i < len(s.data) && (isDigit(s.data[i]) || s.data[i] == '-' || s.data[i] == ':') {
		i++
	}
	raw := s.data[start:i]
	if _, ok := scanRID(raw); !ok {
		return token{}, s.parseError(start, "invalid record id")
	}
	s.pos = i
	return token{kind: tokRef, off: start, raw: raw}, nil
}

func (s *scanner) scanWord() token {
	start := s.pos
	i := start + 1
	for i < len(s.data) && isWordChar(s.data[i]) {
		i++
	}
	s.pos = i
	return token{kind: tokWord, off: start, raw: s.data[start:i]}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isWordStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == '$' || ch == '@'
}

func isWordChar(ch byte) bool {
	return isWordStart(ch) || isDigit(ch) || ch == '-' || ch == '.'
}

var (
	errUTF16BOM = errors.New("detected unsupported UTF-16 BOM")
	errUTF32BOM = errors.New("detected unsupported UTF-32 BOM")
)

// bomLength returns the length of a UTF-8 byte order mark at the start of
// data.  Other byte order marks are errors, since only UTF-8 is supported.
func bomLength(data []byte) (int, error) {
	// UTF-32LE starts with the UTF-16LE mark, so check the longer ones first.
	if len(data) >= 4 && (bytes.HasPrefix(data, utf32BEBOM) || bytes.HasPrefix(data, utf32LEBOM)) {
		return 0, errUTF32BOM
	}
	if bytes.HasPrefix(data, utf16BEBOM) || bytes.HasPrefix(data, utf16LEBOM) {
		return 0, errUTF16BOM
	}
	if bytes.HasPrefix(data, utf8BOM) {
		return len(utf8BOM), nil
	}
	return 0, nil
}
