package recjson

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// localCluster is the cluster of the record ids the encoder makes up for
// records without an identity that are linked more than once.  They only
// have meaning within one document.
const localCluster = -2

var errUnnamedCycle = errors.New("linked record without identity written twice")

// Encoder writes Records as JSON to an output stream.
type Encoder struct {
	w      io.Writer
	opts   FormatOptions
	lookup Lookup
}

// NewEncoder returns an encoder writing to w with DefaultFormat.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, opts: DefaultFormat}
}

// Format sets the format options.
func (e *Encoder) Format(opts FormatOptions) {
	e.opts = opts
}

// Lookup sets where links that are not bound to a record instance are loaded
// from when FetchDepth asks for them to be expanded.
func (e *Encoder) Lookup(l Lookup) {
	e.lookup = l
}

// Encode writes rec followed by a newline.
func (e *Encoder) Encode(rec *Record) error {
	buf, err := appendRecord(make([]byte, 0, 256), rec, e.opts, e.lookup)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = e.w.Write(buf)
	return err
}

// Marshal returns the JSON form of rec.  The format is a keyword list as
// accepted by ParseFormat.
func Marshal(rec *Record, format string) ([]byte, error) {
	return appendRecord(nil, rec, ParseFormat(format), nil)
}

// AppendRecord appends the JSON form of rec to buf and returns the extended
// buffer, just like with `append`.
func AppendRecord(buf []byte, rec *Record, opts FormatOptions) ([]byte, error) {
	return appendRecord(buf, rec, opts, nil)
}

func appendRecord(buf []byte, rec *Record, opts FormatOptions, lookup Lookup) ([]byte, error) {
	named := make(map[*Record]bool)
	for {
		e := newEncodeState(buf, opts, lookup, named)
		err := e.writeRecord(rec, writeRoot, opts.FetchDepth, "")
		if !errors.Is(err, errUnnamedCycle) {
			if err != nil {
				return nil, err
			}
			return e.buf, nil
		}
		// Write again, naming the records that are met more than once.
		for r := range e.revisited {
			named[r] = true
		}
	}
}

type recordRole uint8

const (
	writeRoot recordRole = iota
	writeEmbedded
	writeLinked
)

type encodeState struct {
	opts   FormatOptions
	lookup Lookup
	buf    []byte
	level  int

	// expanded holds every record written as an object so far.
	expanded map[*Record]bool
	// named are the records without identity that need a local id, and
	// localIDs the ids handed out to them.
	named     map[*Record]bool
	localIDs  map[*Record]RID
	revisited map[*Record]bool
}

func newEncodeState(buf []byte, opts FormatOptions, lookup Lookup, named map[*Record]bool) *encodeState {
	return &encodeState{
		opts:      opts,
		lookup:    lookup,
		buf:       buf,
		expanded:  make(map[*Record]bool),
		named:     named,
		localIDs:  make(map[*Record]RID),
		revisited: make(map[*Record]bool),
	}
}

// identity returns the id a record is written with: its own, or a local one.
func (e *encodeState) identity(rec *Record) RID {
	if id := rec.Identity(); id.IsValid() {
		return id
	}
	if id, ok := e.localIDs[rec]; ok {
		return id
	}
	if e.named[rec] {
		id := RID{Cluster: localCluster, Position: -2 - int64(len(e.localIDs))}
		e.localIDs[rec] = id
		return id
	}
	return NoRID
}

func (e *encodeState) newline() {
	if e.opts.Indent <= 0 {
		return
	}
	e.buf = append(e.buf, '\n')
	for i := 0; i < e.level*e.opts.Indent; i++ {
		e.buf = append(e.buf, ' ')
	}
}

func (e *encodeState) writeKey(first *bool, key string) {
	if !*first {
		e.buf = append(e.buf, ',')
	}
	*first = false
	e.newline()
	e.buf = appendQuoted(e.buf, key)
	e.buf = append(e.buf, ':')
	if e.opts.Indent > 0 {
		e.buf = append(e.buf, ' ')
	}
}

func (e *encodeState) open(ch byte) {
	e.buf = append(e.buf, ch)
	e.level++
}

func (e *encodeState) close(ch byte, empty bool) {
	e.level--
	if !empty {
		e.newline()
	}
	e.buf = append(e.buf, ch)
}

func (e *encodeState) writeRecord(rec *Record, role recordRole, fetch int, path string) error {
	e.expanded[rec] = true
	e.open('{')
	first := true

	if role == writeEmbedded || e.opts.Type {
		e.writeKey(&first, attrType)
		e.buf = appendQuoted(e.buf, recordType)
	}
	if role != writeEmbedded {
		id := e.identity(rec)
		// A linked record is only a link again when read with its id.
		if id.IsValid() && (e.opts.RID || role == writeLinked || id.Cluster == localCluster) {
			e.writeKey(&first, attrRID)
			e.buf = append(e.buf, '"')
			e.buf = id.appendTo(e.buf)
			e.buf = append(e.buf, '"')
		}
		if e.opts.Version {
			e.writeKey(&first, attrVersion)
			e.buf = strconv.AppendInt(e.buf, int64(rec.Version()), 10)
		}
	}
	if rec.Class() != "" && (role == writeEmbedded || e.opts.Class) {
		e.writeKey(&first, attrClass)
		e.buf = appendQuoted(e.buf, rec.Class())
	}
	if role == writeLinked {
		e.writeKey(&first, attrEmbedded)
		e.buf = append(e.buf, "true"...)
	}

	var hints hintSet
	for i, name := range rec.names {
		e.writeKey(&first, name)
		if err := e.writeValue(rec.values[i], name, joinPath(path, name), &hints, fetch); err != nil {
			return err
		}
	}
	if key, ok := hints.ambiguous(rec.Get); ok {
		return fmt.Errorf("%s: %w", joinPath(path, key), ErrAmbiguousHint)
	}
	e.writeHints(&first, &hints)

	e.close('}', first)
	return nil
}

func (e *encodeState) writeHints(first *bool, hints *hintSet) {
	if hints.empty() {
		return
	}
	e.writeKey(first, attrFieldTypes)
	e.open('{')
	inner := true
	for i, key := range hints.keys {
		e.writeKey(&inner, key)
		e.buf = append(e.buf, '"', byte(hints.tags[i]), '"')
	}
	e.close('}', inner)
}

func (e *encodeState) hint(hints *hintSet, key string, t Tag) {
	if e.opts.KeepTypes {
		hints.add(key, t)
	}
}

func (e *encodeState) writeValue(v Value, key, path string, hints *hintSet, fetch int) error {
	switch v.kind {
	case KindNull:
		e.buf = append(e.buf, "null"...)
	case KindBool:
		e.buf = strconv.AppendBool(e.buf, v.Bool())
	case KindShort:
		e.buf = strconv.AppendInt(e.buf, int64(v.Short()), 10)
		e.hint(hints, key, TagShort)
	case KindInt:
		e.buf = strconv.AppendInt(e.buf, int64(v.Int()), 10)
	case KindLong:
		e.buf = strconv.AppendInt(e.buf, v.Long(), 10)
		e.hint(hints, key, TagLong)
	case KindByte:
		e.buf = strconv.AppendInt(e.buf, int64(int8(v.Byte())), 10)
		e.hint(hints, key, TagByte)
	case KindFloat:
		return e.writeFloat(float64(v.Float()), 32, TagFloat, key, path, hints)
	case KindDouble:
		return e.writeFloat(v.Double(), 64, TagDouble, key, path, hints)
	case KindBinary:
		e.buf = append(e.buf, '"')
		e.buf = base64.StdEncoding.AppendEncode(e.buf, v.Binary())
		e.buf = append(e.buf, '"')
		e.hint(hints, key, TagBinary)
	case KindString:
		e.buf = appendQuoted(e.buf, v.Str())
		if IsRIDLiteral(v.Str()) {
			// Without the hint it would come back as a link.
			hints.add(key, TagString)
		}
	case KindDecimal:
		e.buf = appendQuoted(e.buf, v.Decimal().String())
		e.hint(hints, key, TagDecimal)
	case KindDate:
		if e.opts.DateAsLong {
			e.buf = strconv.AppendInt(e.buf, v.Millis(), 10)
		} else {
			e.buf = appendQuoted(e.buf, v.Time().Format(dateLayout))
		}
		e.hint(hints, key, TagDate)
	case KindDateTime:
		if e.opts.DateAsLong {
			e.buf = strconv.AppendInt(e.buf, v.Millis(), 10)
		} else {
			e.buf = appendQuoted(e.buf, v.Time().Format(dateTimeLayout))
		}
		e.hint(hints, key, TagDateTime)
	case KindLink:
		return e.writeLink(v.Link(), path, fetch)
	case KindEmbedded:
		return e.writeRecord(v.Record(), writeEmbedded, fetch, path)
	case KindList, KindSet, KindLinkBag:
		return e.writeArray(v, key, path, hints, fetch)
	case KindMap:
		return e.writeMap(v, key, path, hints, fetch)
	default:
		return fmt.Errorf("%s: cannot write value of kind %s", path, v.kind)
	}
	return nil
}

func (e *encodeState) writeFloat(f float64, bits int, tag Tag, key, path string, hints *hintSet) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		switch {
		case e.opts.KeepTypes:
			var s string
			switch {
			case math.IsNaN(f):
				s = "NaN"
			case f > 0:
				s = "Infinity"
			default:
				s = "-Infinity"
			}
			e.buf = appendQuoted(e.buf, s)
			hints.add(key, tag)
		case e.opts.NaNAsNull:
			e.buf = append(e.buf, "null"...)
		default:
			return fmt.Errorf("%s: %w", path, ErrNonFiniteFloat)
		}
		return nil
	}
	e.buf = appendFloat(e.buf, f, bits)
	if tag == TagFloat {
		e.hint(hints, key, tag)
	}
	return nil
}

// appendFloat writes the shortest representation that reads back as the same
// value, always with a fraction or exponent so that it is not taken for an
// integer.
func appendFloat(buf []byte, f float64, bits int) []byte {
	start := len(buf)
	buf = strconv.AppendFloat(buf, f, 'g', -1, bits)
	for _, ch := range buf[start:] {
		if ch == '.' || ch == 'e' {
			return buf
		}
	}
	return append(buf, '.', '0')
}

func (e *encodeState) writeLink(l *Link, path string, fetch int) error {
	rid := l.RID()
	rec := l.Record()

	if rec == nil && fetch != 0 && e.lookup != nil && rid.IsValid() {
		loaded, err := e.lookup.Load(rid)
		if err != nil {
			return fmt.Errorf("%s: loading %s: %w", path, rid, err)
		}
		rec = loaded
	}

	if rec != nil {
		if rec.Owner() != nil {
			// Embedded records are written without an id to link to.
			return fmt.Errorf("%s: link to an embedded record: %w", path, ErrAliasedEmbedded)
		}
		if !rec.Identity().IsValid() {
			// Any id the link was read with only meant something in its
			// own document.
			rid = e.identity(rec)
		}
		if e.expanded[rec] {
			if !rid.IsValid() {
				e.revisited[rec] = true
				return fmt.Errorf("%s: %w", path, errUnnamedCycle)
			}
		} else if !rec.Identity().IsValid() || fetch != 0 {
			// Records without identity can only be written inline.
			next := fetch
			if next > 0 {
				next--
			}
			return e.writeRecord(rec, writeLinked, next, path)
		}
	}

	e.buf = append(e.buf, '"')
	e.buf = rid.appendTo(e.buf)
	e.buf = append(e.buf, '"')
	return nil
}

func (e *encodeState) writeArray(v Value, key, path string, hints *hintSet, fetch int) error {
	switch {
	case v.kind == KindLinkBag:
		e.hint(hints, key, TagLinkBag)
	case v.kind == KindSet && v.IsLinkCollection():
		e.hint(hints, key, TagLinkSet)
	case v.kind == KindSet:
		e.hint(hints, key, TagSet)
	case v.IsLinkCollection():
		e.hint(hints, key, TagLinkList)
	}

	e.open('[')
	for i, item := range v.items {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		e.newline()
		if err := e.writeValue(item, hintKey(key, i), elemPath(path, i), hints, fetch); err != nil {
			return err
		}
	}
	e.close(']', len(v.items) == 0)
	return nil
}

func (e *encodeState) writeMap(v Value, key, path string, hints *hintSet, fetch int) error {
	if v.IsLinkCollection() {
		e.hint(hints, key, TagLinkMap)
	}

	e.open('{')
	first := true
	var inner hintSet
	for i, k := range v.keys {
		if isReservedName(k) {
			return fmt.Errorf("%s: map key %q: %w", path, k, ErrReservedName)
		}
		e.writeKey(&first, k)
		if err := e.writeValue(v.items[i], k, joinPath(path, k), &inner, fetch); err != nil {
			return err
		}
	}
	if key, ok := inner.ambiguous(v.Get); ok {
		return fmt.Errorf("%s: %w", joinPath(path, key), ErrAmbiguousHint)
	}
	e.writeHints(&first, &inner)
	e.close('}', first)
	return nil
}
