package recjson

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedJSON is wrapped by every structural ParseError.
	ErrMalformedJSON = errors.New("malformed json")
	// ErrUnknownType is wrapped by a ParseError for an unrecognized type tag
	// or record kind.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidLink is wrapped by a LinkError for a link to #-1:-1.
	ErrInvalidLink = errors.New("invalid link")
	// ErrDanglingLink is wrapped by a LinkError for a link whose target does
	// not exist when the unit of work commits.
	ErrDanglingLink = errors.New("dangling link")
	// ErrNonFiniteFloat is returned by the encoder for NaN or infinite floats
	// when the format neither keeps types nor allows writing them as null.
	ErrNonFiniteFloat = errors.New("non-finite float requires keepTypes")
	// ErrAliasedEmbedded is returned when an embedded record that already
	// belongs to a field is assigned to another one, or is the target of a
	// link being written.
	ErrAliasedEmbedded = errors.New("embedded record already owned")
	// ErrAmbiguousHint is returned when writing type hints for a field whose
	// name is also the hint key of an element of another field.
	ErrAmbiguousHint = errors.New("field name matches an element hint key")
	// ErrReservedName is returned when a field or map key collides with a
	// reserved attribute name.
	ErrReservedName = errors.New("reserved attribute name")
)

// ParseError records JSON parsing errors.  It can include a small excerpt of
// text from the input at the point of error.
type ParseError struct {
	Offset int
	Msg    string
	Err    error
}

func (pe *ParseError) Error() string {
	return "parse error: " + pe.Msg
}

func (pe *ParseError) Unwrap() error {
	if pe.Err == nil {
		return ErrMalformedJSON
	}
	return pe.Err
}

func newParseError(data []byte, off int, err error, format string, args ...interface{}) *ParseError {
	msg := fmt.Sprintf(format, args...)
	if off >= 0 && off <= len(data) {
		if off < len(data) {
			end := off + 20
			if end > len(data) {
				end = len(data)
			}
			msg = fmt.Sprintf("%s on char '%c' at offset %d, followed by '%s...'", msg, data[off], off, data[off+1:end])
		} else {
			msg = fmt.Sprintf("%s at end of input", msg)
		}
	}
	return &ParseError{Offset: off, Msg: msg, Err: err}
}

// LinkError records a link that cannot be resolved.  Path names the offending
// field, e.g. "emergency.contact" or "friends[2]".
type LinkError struct {
	Path string
	RID  RID
	Err  error
}

func (le *LinkError) Error() string {
	var buf strings.Builder
	buf.WriteString("link error: ")
	if le.Path != "" {
		buf.WriteString(le.Path)
		buf.WriteString(": ")
	}
	if le.Err != nil {
		buf.WriteString(le.Err.Error())
	} else {
		buf.WriteString("unresolved link")
	}
	buf.WriteString(" ")
	buf.WriteString(le.RID.String())
	return buf.String()
}

func (le *LinkError) Unwrap() error { return le.Err }
