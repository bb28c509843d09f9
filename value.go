package recjson

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Value is a single typed field value.  The zero Value is null.
//
// Values are built with the constructor functions (Int, Double, List, ...)
// and read with the accessor methods.  An accessor called on a value of a
// different kind panics, like the reflect package does.
type Value struct {
	kind  Kind
	num   uint64
	str   string
	bin   []byte
	dec   primitive.Decimal128
	link  *Link
	rec   *Record
	keys  []string
	items []Value
}

// MapEntry is one key/value pair of a map value.
type MapEntry struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Short returns a 16-bit integer value.
func Short(n int16) Value { return Value{kind: KindShort, num: uint64(int64(n))} }

// Int returns a 32-bit integer value.
func Int(n int32) Value { return Value{kind: KindInt, num: uint64(int64(n))} }

// Long returns a 64-bit integer value.
func Long(n int64) Value { return Value{kind: KindLong, num: uint64(n)} }

// Float returns a single precision value.
func Float(f float32) Value { return Value{kind: KindFloat, num: uint64(math.Float32bits(f))} }

// Double returns a double precision value.
func Double(f float64) Value { return Value{kind: KindDouble, num: math.Float64bits(f)} }

// Byte returns a byte value.  Bytes are written as signed numbers, so
// Byte(255) is written as -1.
func Byte(b byte) Value { return Value{kind: KindByte, num: uint64(b)} }

// Binary returns a byte string value.  The slice is not copied.
func Binary(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBinary, bin: b}
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Decimal returns a decimal value.
func Decimal(d primitive.Decimal128) Value { return Value{kind: KindDecimal, dec: d} }

// Date returns a calendar date value.  Only the year, month and day of t as
// seen in t's location are kept.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Value{kind: KindDate, num: uint64(day.UnixMilli())}
}

// DateTime returns an instant with millisecond precision.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, num: uint64(t.UnixMilli())}
}

func dateFromMillis(kind Kind, ms int64) Value {
	if kind == KindDate {
		return Date(time.UnixMilli(ms).UTC())
	}
	return Value{kind: KindDateTime, num: uint64(ms)}
}

// LinkTo returns a link to the record identified by rid.
func LinkTo(rid RID) Value {
	return Value{kind: KindLink, link: &Link{rid: rid}}
}

// LinkToRecord returns a link bound to rec.  The link follows rec's identity,
// so it stays correct when rec is assigned a persistent identity later.
func LinkToRecord(rec *Record) Value {
	return Value{kind: KindLink, link: &Link{rid: rec.Identity(), rec: rec}}
}

func linkValue(l *Link) Value { return Value{kind: KindLink, link: l} }

// Embedded returns a value owning rec.  A record can be owned by one field
// slot only.
func Embedded(rec *Record) Value {
	return Value{kind: KindEmbedded, rec: rec}
}

// List returns an ordered list value.
func List(items ...Value) Value {
	return Value{kind: KindList, items: append([]Value{}, items...)}
}

// Set returns a set value.  Duplicate items, by Equal, are dropped.
func Set(items ...Value) Value {
	out := make([]Value, 0, len(items))
	for _, item := range items {
		if !containsValue(out, item) {
			out = append(out, item)
		}
	}
	return Value{kind: KindSet, items: out}
}

// Map returns a map value.  A later entry replaces an earlier one with the
// same key, keeping the earlier position.
func Map(entries ...MapEntry) Value {
	v := Value{kind: KindMap, keys: make([]string, 0, len(entries)), items: make([]Value, 0, len(entries))}
	for _, e := range entries {
		v = v.withEntry(e.Key, e.Value)
	}
	return v
}

func (v Value) withEntry(key string, item Value) Value {
	for i, k := range v.keys {
		if k == key {
			v.items[i] = item
			return v
		}
	}
	v.keys = append(v.keys, key)
	v.items = append(v.items, item)
	return v
}

// LinkBag returns an unordered multiset of links.  Every item must be a link.
func LinkBag(links ...Value) Value {
	for _, l := range links {
		if l.kind != KindLink {
			panic(fmt.Sprintf("recjson: LinkBag item of kind %s", l.kind))
		}
	}
	return Value{kind: KindLinkBag, items: append([]Value{}, links...)}
}

// LinkBagOf returns a link bag of the given identities.
func LinkBagOf(rids ...RID) Value {
	links := make([]Value, len(rids))
	for i, rid := range rids {
		links[i] = LinkTo(rid)
	}
	return Value{kind: KindLinkBag, items: links}
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("recjson: %s accessor called on %s value", k, v.kind))
	}
}

func (v Value) Bool() bool { v.mustBe(KindBool); return v.num != 0 }

func (v Value) Short() int16 { v.mustBe(KindShort); return int16(v.num) }

func (v Value) Int() int32 { v.mustBe(KindInt); return int32(v.num) }

func (v Value) Long() int64 { v.mustBe(KindLong); return int64(v.num) }

func (v Value) Float() float32 { v.mustBe(KindFloat); return math.Float32frombits(uint32(v.num)) }

func (v Value) Double() float64 { v.mustBe(KindDouble); return math.Float64frombits(v.num) }

func (v Value) Byte() byte { v.mustBe(KindByte); return byte(v.num) }

func (v Value) Binary() []byte { v.mustBe(KindBinary); return v.bin }

// Str returns the content of a string value.
func (v Value) Str() string { v.mustBe(KindString); return v.str }

func (v Value) Decimal() primitive.Decimal128 { v.mustBe(KindDecimal); return v.dec }

// Time returns a date or datetime value as a UTC time.
func (v Value) Time() time.Time {
	if v.kind != KindDate && v.kind != KindDateTime {
		v.mustBe(KindDateTime)
	}
	return time.UnixMilli(int64(v.num)).UTC()
}

// Millis returns a date or datetime value as milliseconds since the epoch.
func (v Value) Millis() int64 {
	if v.kind != KindDate && v.kind != KindDateTime {
		v.mustBe(KindDateTime)
	}
	return int64(v.num)
}

func (v Value) Link() *Link { v.mustBe(KindLink); return v.link }

// Record returns the record owned by an embedded value.
func (v Value) Record() *Record { v.mustBe(KindEmbedded); return v.rec }

// Items returns the elements of a list, set, map or link bag.  For a map, the
// items are its values in key order.  The slice must not be modified.
func (v Value) Items() []Value {
	if !v.kind.IsCollection() {
		v.mustBe(KindList)
	}
	return v.items
}

// Len returns the number of elements of a collection, or the length of a
// string or binary value.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindBinary:
		return len(v.bin)
	}
	return len(v.Items())
}

// Keys returns the keys of a map value in insertion order.
func (v Value) Keys() []string { v.mustBe(KindMap); return v.keys }

// Get returns the value stored under key in a map value.
func (v Value) Get(key string) (Value, bool) {
	v.mustBe(KindMap)
	for i, k := range v.keys {
		if k == key {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Entries returns the entries of a map value in insertion order.
func (v Value) Entries() []MapEntry {
	v.mustBe(KindMap)
	out := make([]MapEntry, len(v.keys))
	for i, k := range v.keys {
		out[i] = MapEntry{Key: k, Value: v.items[i]}
	}
	return out
}

// AsInt64 widens any integer kind.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindShort, KindInt, KindLong:
		return int64(v.num), true
	case KindByte:
		return int64(byte(v.num)), true
	}
	return 0, false
}

// AsFloat64 widens either float kind.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return float64(math.Float32frombits(uint32(v.num))), true
	case KindDouble:
		return math.Float64frombits(v.num), true
	}
	return 0, false
}

// IsLinkCollection reports whether v is a non-empty list, set or map made of
// links only, or a link bag.
func (v Value) IsLinkCollection() bool {
	switch v.kind {
	case KindLinkBag:
		return true
	case KindList, KindSet, KindMap:
		if len(v.items) == 0 {
			return false
		}
		for _, item := range v.items {
			if item.kind != KindLink {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v and o have the same kind and content.  Embedded
// records compare by content, links by target identity, sets, maps and link
// bags regardless of order.  All NaNs are equal to each other.
func (v Value) Equal(o Value) bool {
	return equalValues(v, o, nil)
}

type recordPair struct{ a, b *Record }

func equalValues(v, o Value, seen map[recordPair]bool) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindFloat:
		a, b := math.Float32frombits(uint32(v.num)), math.Float32frombits(uint32(o.num))
		if a != a && b != b {
			return true
		}
		return v.num == o.num
	case KindDouble:
		a, b := math.Float64frombits(v.num), math.Float64frombits(o.num)
		if math.IsNaN(a) && math.IsNaN(b) {
			return true
		}
		return v.num == o.num
	case KindBool, KindShort, KindInt, KindLong, KindByte, KindDate, KindDateTime:
		return v.num == o.num
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindString:
		return v.str == o.str
	case KindDecimal:
		vh, vl := v.dec.GetBytes()
		oh, ol := o.dec.GetBytes()
		return vh == oh && vl == ol
	case KindLink:
		return equalLinks(v.link, o.link, seen)
	case KindEmbedded:
		return equalRecords(v.rec, o.rec, seen)
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !equalValues(v.items[i], o.items[i], seen) {
				return false
			}
		}
		return true
	case KindSet, KindLinkBag:
		return equalMultisets(v.items, o.items, seen)
	case KindMap:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for i, k := range v.keys {
			other, ok := o.Get(k)
			if !ok || !equalValues(v.items[i], other, seen) {
				return false
			}
		}
		return true
	}
	return false
}

func equalLinks(a, b *Link, seen map[recordPair]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	ra, rb := a.RID(), b.RID()
	if ra.IsValid() || rb.IsValid() {
		return ra == rb
	}
	// Neither side has an identity yet: compare what they point to.
	if a.rec == nil || b.rec == nil {
		return a.rec == b.rec
	}
	return equalRecords(a.rec, b.rec, seen)
}

func equalRecords(a, b *Record, seen map[recordPair]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if seen == nil {
		seen = make(map[recordPair]bool)
	}
	pair := recordPair{a, b}
	if seen[pair] {
		return true
	}
	seen[pair] = true
	if a.class != b.class || len(a.names) != len(b.names) {
		return false
	}
	for i, name := range a.names {
		j, ok := b.index[name]
		if !ok || !equalValues(a.values[i], b.values[j], seen) {
			return false
		}
	}
	return true
}

func equalMultisets(a, b []Value, seen map[recordPair]bool) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
OUTER:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && equalValues(x, y, seen) {
				used[j] = true
				continue OUTER
			}
		}
		return false
	}
	return true
}

func containsValue(items []Value, v Value) bool {
	for _, item := range items {
		if item.Equal(v) {
			return true
		}
	}
	return false
}

// String formats v for debugging.  It is not the JSON form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindShort, KindInt, KindLong:
		n, _ := v.AsInt64()
		return strconv.FormatInt(n, 10) + v.kind.suffix()
	case KindByte:
		return strconv.Itoa(int(byte(v.num))) + "b"
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32) + "f"
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindBinary:
		return fmt.Sprintf("%x", v.bin)
	case KindString:
		return strconv.Quote(v.str)
	case KindDecimal:
		return v.dec.String() + "c"
	case KindDate:
		return v.Time().Format(dateLayout)
	case KindDateTime:
		return v.Time().Format(dateTimeLayout)
	case KindLink:
		return v.link.RID().String()
	case KindEmbedded:
		return v.rec.String()
	case KindMap:
		parts := make([]string, len(v.keys))
		for i, k := range v.keys {
			parts[i] = strconv.Quote(k) + ":" + v.items[i].String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		parts[i] = item.String()
	}
	open, close := "[", "]"
	switch v.kind {
	case KindSet:
		open, close = "<", ">"
	case KindLinkBag:
		open, close = "bag[", "]"
	}
	return open + strings.Join(parts, ",") + close
}

func (k Kind) suffix() string {
	switch k {
	case KindShort:
		return "s"
	case KindLong:
		return "l"
	}
	return ""
}

// Link is a non-owning reference to another record.  A link starts out as a
// bare identity and may be bound to a *Record instance by a Resolver; once
// bound, the link reports the record's current identity.
type Link struct {
	rid RID
	rec *Record
}

// RID returns the identity the link points to.
func (l *Link) RID() RID {
	if l.rec != nil {
		if id := l.rec.Identity(); id.IsValid() {
			return id
		}
	}
	return l.rid
}

// Record returns the record the link is bound to, or nil.
func (l *Link) Record() *Record { return l.rec }

// IsBound reports whether the link has been bound to a record instance.
func (l *Link) IsBound() bool { return l.rec != nil }

func (l *Link) bind(rec *Record) {
	l.rec = rec
	if id := rec.Identity(); id.IsValid() {
		l.rid = id
	}
}
