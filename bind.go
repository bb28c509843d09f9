package recjson

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// binder turns a node tree into record values.  Nothing outside the tree it
// builds is modified until commit is called, so a failed bind leaves the
// target record and the unit of work untouched.
type binder struct {
	data    []byte
	extJSON bool
	uow     UnitOfWork
	res     *Resolver

	// visited holds the records under construction in this call, keyed by
	// the identity the document gives them.
	visited map[RID]*Record
	created []*Record
	links   []LinkRef
	errs    []error
}

// attrs are the reserved attributes of one object.
type attrs struct {
	hasType    bool
	class      string
	hasClass   bool
	rid        RID
	hasRID     bool
	version    int32
	hasVersion bool
	embedded   bool
	hints      map[string]Tag
}

func (d *Decoder) bind(root *node, target *Record) error {
	b := &binder{
		data:    d.data,
		extJSON: d.extJSONAllowed,
		uow:     d.uow,
		visited: make(map[RID]*Record),
	}
	if d.uow != nil {
		b.res = d.uow.Resolver()
	}

	a, err := b.readAttrs(root)
	if err != nil {
		return err
	}
	if id := target.Identity(); id.IsValid() {
		b.visited[id] = target
	}
	if a.hasRID && a.rid.IsValid() {
		b.visited[a.rid] = target
	}

	scratch := &Record{}
	if err := b.bindFields(root, scratch, a.hints, ""); err != nil {
		return err
	}
	if b.uow == nil && len(b.errs) > 0 {
		return errors.Join(b.errs...)
	}

	target.replaceFrom(scratch)
	if a.hasClass {
		target.SetClass(a.class)
	}
	if a.hasVersion {
		target.SetVersion(a.version)
	}
	if a.hasRID && !target.Identity().IsValid() {
		switch {
		case a.rid.IsPersistent():
			target.SetIdentity(a.rid)
		case a.rid.IsTemporary() && b.res != nil:
			// A free temporary @rid names the record within the unit of
			// work, so links from other documents reach it before commit.
			if _, taken := b.res.Lookup(a.rid); !taken {
				target.SetIdentity(a.rid)
				b.res.Register(target)
			}
		}
	}
	b.commit()
	return nil
}

// commit publishes what the bind produced: forward references within the
// document are bound, new records join the unit of work and the remaining
// links and errors go to its resolver.
func (b *binder) commit() {
	for _, ref := range b.links {
		if rec, ok := b.visited[ref.Link.rid]; ok && !ref.Link.IsBound() {
			ref.Link.bind(rec)
		}
	}
	if b.uow == nil {
		return
	}
	for _, rec := range b.created {
		b.uow.Attach(rec)
	}
	for _, ref := range b.links {
		b.res.Resolve(ref.Link, ref.Path)
	}
	for _, err := range b.errs {
		b.res.AddError(err)
	}
}

func (b *binder) errorAt(n *node, err error, format string, args ...interface{}) *ParseError {
	return newParseError(b.data, n.off, err, format, args...)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func elemPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func (b *binder) readAttrs(n *node) (attrs, error) {
	var a attrs
	for _, m := range n.members {
		v := m.val
		switch m.name {
		case attrType:
			if v.kind != nodeString {
				return a, b.errorAt(v, nil, "@type must be a string")
			}
			if v.str != recordType {
				return a, b.errorAt(v, ErrUnknownType, "unknown record type %q", v.str)
			}
			a.hasType = true
		case attrClass:
			switch v.kind {
			case nodeString:
				a.class = v.str
			case nodeNull:
			default:
				return a, b.errorAt(v, nil, "@class must be a string")
			}
			a.hasClass = true
		case attrRID:
			switch v.kind {
			case nodeString, nodeRef:
				rid, ok := scanRID([]byte(v.str))
				if !ok {
					return a, b.errorAt(v, nil, "invalid @rid %q", v.str)
				}
				a.rid = rid
				a.hasRID = true
			case nodeNull:
			default:
				return a, b.errorAt(v, nil, "@rid must be a string")
			}
		case attrVersion:
			if v.kind != nodeNumber {
				return a, b.errorAt(v, nil, "@version must be a number")
			}
			ver, err := strconv.ParseInt(string(v.raw), 10, 32)
			if err != nil {
				return a, b.errorAt(v, nil, "invalid @version: %v", err)
			}
			a.version = int32(ver)
			a.hasVersion = true
		case attrEmbedded:
			switch v.kind {
			case nodeTrue:
				a.embedded = true
			case nodeFalse:
			default:
				return a, b.errorAt(v, nil, "@embedded must be a boolean")
			}
		case attrFieldTypes:
			hints, err := b.readHints(v)
			if err != nil {
				return a, err
			}
			a.hints = hints
		}
	}
	return a, nil
}

func (b *binder) readHints(n *node) (map[string]Tag, error) {
	hints := make(map[string]Tag)
	switch n.kind {
	case nodeObject:
		for _, m := range n.members {
			if m.val.kind != nodeString || len(m.val.str) != 1 {
				return nil, b.errorAt(m.val, nil, "type hint for %q must be a single character", m.name)
			}
			t := Tag(m.val.str[0])
			if !t.Known() {
				return nil, b.errorAt(m.val, ErrUnknownType, "unknown type tag %q for %q", m.val.str, m.name)
			}
			hints[m.name] = t
		}
	case nodeString:
		if bad, ok := parseLegacyFieldTypes(n.str, hints); !ok {
			return nil, b.errorAt(n, nil, "invalid @fieldTypes entry %q", bad)
		}
		for name, t := range hints {
			if !t.Known() {
				return nil, b.errorAt(n, ErrUnknownType, "unknown type tag %q for %q", t.String(), name)
			}
		}
	default:
		return nil, b.errorAt(n, nil, "@fieldTypes must be an object")
	}
	return hints, nil
}

func (b *binder) bindFields(n *node, rec *Record, hints map[string]Tag, path string) error {
	for _, m := range n.members {
		if isReservedName(m.name) {
			continue
		}
		v, err := b.bindValue(m.val, hints, m.name, joinPath(path, m.name))
		if err != nil {
			return err
		}
		if err := rec.Set(m.name, v); err != nil {
			return newParseError(b.data, m.off, err, "%v", err)
		}
	}
	return nil
}

// bindValue binds n using the hint stored under key, if any.
func (b *binder) bindValue(n *node, hints map[string]Tag, key, path string) (Value, error) {
	if tag, ok := hints[key]; ok {
		return b.coerce(n, tag, hints, key, path)
	}

	switch n.kind {
	case nodeNull:
		return Null(), nil
	case nodeTrue:
		return Bool(true), nil
	case nodeFalse:
		return Bool(false), nil
	case nodeNumber:
		return b.inferNumber(n)
	case nodeString:
		if rid, ok := scanRID([]byte(n.str)); ok {
			return b.ref(rid, path), nil
		}
		return String(n.str), nil
	case nodeRef:
		rid, _ := scanRID(n.raw)
		return b.ref(rid, path), nil
	case nodeArray:
		items, err := b.bindElems(n, hints, key, path)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindList, items: items}, nil
	}
	return b.bindObject(n, path)
}

func (b *binder) bindElems(n *node, hints map[string]Tag, key, path string) ([]Value, error) {
	items := make([]Value, len(n.elems))
	for i, elem := range n.elems {
		v, err := b.bindValue(elem, hints, hintKey(key, i), elemPath(path, i))
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// bindObject binds an object that carries no hint: a link snapshot, an
// embedded record or a map, in that order of precedence.
func (b *binder) bindObject(n *node, path string) (Value, error) {
	if b.extJSON {
		v, ok, err := b.extJSONValue(n)
		if err != nil || ok {
			return v, err
		}
	}
	a, err := b.readAttrs(n)
	if err != nil {
		return Value{}, err
	}
	switch {
	case a.embedded || a.hasRID:
		return b.bindSnapshot(n, a, path)
	case a.hasType || a.hasClass:
		return b.bindEmbedded(n, a, path)
	}
	return b.bindMap(n, a.hints, path, false)
}

func (b *binder) bindEmbedded(n *node, a attrs, path string) (Value, error) {
	rec := NewRecord(a.class)
	if err := b.bindFields(n, rec, a.hints, path); err != nil {
		return Value{}, err
	}
	rec.ClearDirty()
	return Embedded(rec), nil
}

func (b *binder) bindMap(n *node, hints map[string]Tag, path string, links bool) (Value, error) {
	v := Value{kind: KindMap}
	for _, m := range n.members {
		if isReservedName(m.name) {
			if m.name == attrFieldTypes {
				continue
			}
			return Value{}, newParseError(b.data, m.off, ErrReservedName, "reserved key %q in map", m.name)
		}
		var item Value
		var err error
		if links {
			item, err = b.bindLink(m.val, joinPath(path, m.name), true)
		} else {
			item, err = b.bindValue(m.val, hints, m.name, joinPath(path, m.name))
		}
		if err != nil {
			return Value{}, err
		}
		v.keys = append(v.keys, m.name)
		v.items = append(v.items, item)
	}
	return v, nil
}

// bindSnapshot binds an object standing for a linked record.
func (b *binder) bindSnapshot(n *node, a attrs, path string) (Value, error) {
	docRID := NoRID
	if a.hasRID && a.rid.IsValid() {
		if rec, ok := b.known(a.rid); ok {
			l := &Link{rid: a.rid}
			l.bind(rec)
			return linkValue(l), nil
		}
		if !a.rid.IsTemporary() {
			// The snapshot of a stored record is only a reference to it.
			return b.ref(a.rid, path), nil
		}
		docRID = a.rid
	}

	// A snapshot without a usable identity describes a new record.
	var rec *Record
	if b.uow != nil {
		rec = b.uow.NewRecord(a.class)
	} else {
		rec = NewRecord(a.class)
	}
	if docRID.IsValid() {
		b.visited[docRID] = rec
	}
	if a.hasVersion {
		rec.SetVersion(a.version)
	}
	if err := b.bindFields(n, rec, a.hints, path); err != nil {
		return Value{}, err
	}
	b.created = append(b.created, rec)
	return linkValue(&Link{rid: docRID, rec: rec}), nil
}

// known returns the record bound to rid in this call or in the unit of work.
func (b *binder) known(rid RID) (*Record, bool) {
	if rec, ok := b.visited[rid]; ok {
		return rec, true
	}
	if b.res != nil {
		return b.res.Lookup(rid)
	}
	return nil, false
}

// ref returns a link to rid, bound at once when the target is known.
func (b *binder) ref(rid RID, path string) Value {
	l := &Link{rid: rid}
	if !rid.IsValid() {
		b.errs = append(b.errs, &LinkError{Path: path, RID: rid, Err: ErrInvalidLink})
		return linkValue(l)
	}
	if rec, ok := b.known(rid); ok {
		l.bind(rec)
		return linkValue(l)
	}
	b.links = append(b.links, LinkRef{Path: path, Link: l})
	return linkValue(l)
}

// bindLink binds an element of a link collection.
func (b *binder) bindLink(n *node, path string, nullable bool) (Value, error) {
	switch n.kind {
	case nodeNull:
		if nullable {
			return Null(), nil
		}
	case nodeString, nodeRef:
		rid, ok := scanRID([]byte(n.str))
		if !ok {
			return Value{}, b.errorAt(n, nil, "%s: invalid record id %q", path, n.str)
		}
		return b.ref(rid, path), nil
	case nodeObject:
		a, err := b.readAttrs(n)
		if err != nil {
			return Value{}, err
		}
		return b.bindSnapshot(n, a, path)
	}
	return Value{}, b.errorAt(n, nil, "%s: expecting record id, found %s", path, n.kind)
}

func (b *binder) coerce(n *node, tag Tag, hints map[string]Tag, key, path string) (Value, error) {
	if n.kind == nodeNull {
		return Null(), nil
	}

	switch tag {
	case TagString:
		switch n.kind {
		case nodeString, nodeRef:
			return String(n.str), nil
		case nodeNumber:
			return String(string(n.raw)), nil
		}
	case TagShort, TagInt, TagLong, TagByte:
		if s, ok := scalarText(n); ok {
			return b.coerceInt(n, tag, s, path)
		}
	case TagFloat, TagDouble:
		if s, ok := scalarText(n); ok {
			return b.coerceFloat(n, tag, s, path)
		}
	case TagDecimal:
		if s, ok := scalarText(n); ok {
			d, err := primitive.ParseDecimal128(s)
			if err != nil {
				return Value{}, b.errorAt(n, nil, "%s: invalid decimal %q", path, s)
			}
			return Decimal(d), nil
		}
	case TagDate, TagDateTime:
		if s, ok := scalarText(n); ok {
			return b.coerceTime(n, tag, s, path)
		}
	case TagBinary:
		if n.kind == nodeString {
			bin, err := base64.StdEncoding.DecodeString(n.str)
			if err != nil {
				return Value{}, b.errorAt(n, nil, "%s: invalid base64: %v", path, err)
			}
			return Binary(bin), nil
		}
	case TagLink:
		return b.bindLink(n, path, true)
	case TagLinkList, TagLinkSet, TagLinkBag:
		if n.kind == nodeArray {
			items := make([]Value, len(n.elems))
			for i, elem := range n.elems {
				v, err := b.bindLink(elem, elemPath(path, i), tag != TagLinkBag)
				if err != nil {
					return Value{}, err
				}
				items[i] = v
			}
			switch tag {
			case TagLinkList:
				return Value{kind: KindList, items: items}, nil
			case TagLinkSet:
				return Set(items...), nil
			}
			return Value{kind: KindLinkBag, items: items}, nil
		}
	case TagLinkMap:
		if n.kind == nodeObject {
			return b.bindMap(n, nil, path, true)
		}
	case TagList, TagSet:
		if n.kind == nodeArray {
			items, err := b.bindElems(n, hints, key, path)
			if err != nil {
				return Value{}, err
			}
			if tag == TagSet {
				return Set(items...), nil
			}
			return Value{kind: KindList, items: items}, nil
		}
	case TagMap:
		if n.kind == nodeObject {
			a, err := b.readAttrs(n)
			if err != nil {
				return Value{}, err
			}
			return b.bindMap(n, a.hints, path, false)
		}
	case TagEmbedded:
		if n.kind == nodeObject {
			a, err := b.readAttrs(n)
			if err != nil {
				return Value{}, err
			}
			return b.bindEmbedded(n, a, path)
		}
	default:
		return Value{}, b.errorAt(n, ErrUnknownType, "%s: unknown type tag %q", path, tag.String())
	}
	return Value{}, b.errorAt(n, nil, "%s: cannot read %s as type '%s'", path, n.kind, tag.String())
}

// scalarText returns the text of a number or string node.
func scalarText(n *node) (string, bool) {
	switch n.kind {
	case nodeNumber:
		return string(n.raw), true
	case nodeString:
		return n.str, true
	}
	return "", false
}

func (b *binder) coerceInt(n *node, tag Tag, s, path string) (Value, error) {
	bits := 64
	switch tag {
	case TagShort:
		bits = 16
	case TagInt:
		bits = 32
	case TagByte:
		bits = 8
	}
	if tag == TagByte {
		// Bytes are written signed; unsigned input is still accepted.
		i, err := strconv.ParseInt(s, 10, 16)
		if err != nil || i < math.MinInt8 || i > math.MaxUint8 {
			return Value{}, b.errorAt(n, nil, "%s: invalid byte %q", path, s)
		}
		return Byte(byte(i)), nil
	}
	i, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return Value{}, b.errorAt(n, nil, "%s: invalid %d-bit integer %q", path, bits, s)
	}
	switch tag {
	case TagShort:
		return Short(int16(i)), nil
	case TagInt:
		return Int(int32(i)), nil
	}
	return Long(i), nil
}

func (b *binder) coerceFloat(n *node, tag Tag, s, path string) (Value, error) {
	bits := 64
	if tag == TagFloat {
		bits = 32
	}
	var f float64
	switch s {
	case "NaN":
		f = math.NaN()
	case "Infinity":
		f = math.Inf(1)
	case "-Infinity":
		f = math.Inf(-1)
	default:
		var err error
		f, err = strconv.ParseFloat(s, bits)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, b.errorAt(n, nil, "%s: invalid %d-bit float %q", path, bits, s)
		}
	}
	if tag == TagFloat {
		return Float(float32(f)), nil
	}
	return Double(f), nil
}

func (b *binder) coerceTime(n *node, tag Tag, s, path string) (Value, error) {
	if n.kind == nodeNumber {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, b.errorAt(n, nil, "%s: invalid epoch milliseconds %q", path, s)
		}
		return dateFromMillis(kindForTimeTag(tag), ms), nil
	}
	t, err := parseTime(s)
	if err != nil {
		return Value{}, b.errorAt(n, nil, "%s: %v", path, err)
	}
	if tag == TagDate {
		return Date(t), nil
	}
	return DateTime(t), nil
}

func kindForTimeTag(tag Tag) Kind {
	if tag == TagDate {
		return KindDate
	}
	return KindDateTime
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func (b *binder) inferNumber(n *node) (Value, error) {
	s := string(n.raw)
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, b.errorAt(n, nil, "float conversion: %v", err)
		}
		return Double(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Value{}, b.errorAt(n, nil, "int conversion: %v", err)
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return Long(i), nil
	}
	return Int(int32(i)), nil
}
