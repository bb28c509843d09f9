package recjson

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is an ordered set of named fields plus the attributes that identify
// it: an optional identity, an optional class name and a version.
//
// The zero Record is an empty record with no identity.  A Record is not safe
// for concurrent mutation.
type Record struct {
	id         RID
	identified bool
	class      string
	version    int32
	names      []string
	values     []Value
	index      map[string]int
	dirty      bool

	// Set while the record is embedded in a field of owner.
	owner      *Record
	ownerField string
}

// NewRecord returns an empty record of the given class.  The class may be
// empty.
func NewRecord(class string) *Record {
	return &Record{class: class}
}

// Identity returns the record's identity, or NoRID if it has none.
func (r *Record) Identity() RID {
	if !r.identified {
		return NoRID
	}
	return r.id
}

// SetIdentity assigns the record's identity.  Assigning NoRID clears it.
func (r *Record) SetIdentity(rid RID) {
	r.id = rid
	r.identified = rid.IsValid()
}

// IsNew reports whether the record has no persistent identity.
func (r *Record) IsNew() bool {
	return !r.Identity().IsPersistent()
}

func (r *Record) Class() string { return r.class }

func (r *Record) SetClass(class string) { r.class = class }

func (r *Record) Version() int32 { return r.version }

func (r *Record) SetVersion(v int32) { r.version = v }

// IsDirty reports whether a field was changed since the record was created
// or since the last call to ClearDirty.
func (r *Record) IsDirty() bool { return r.dirty }

// ClearDirty resets the dirty flag.
func (r *Record) ClearDirty() { r.dirty = false }

// Owner returns the record whose field holds r as an embedded record, or nil.
func (r *Record) Owner() *Record { return r.owner }

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.names) }

// Fields returns the field names in insertion order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether the record has a field called name.
func (r *Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Set assigns a field, keeping the field's position if it already exists.
// Embedded records found in v, including inside collections, become owned by
// this field; an embedded record that is already owned by another field
// results in ErrAliasedEmbedded and leaves the record unchanged.
func (r *Record) Set(name string, v Value) error {
	if isReservedName(name) {
		return fmt.Errorf("field %q: %w", name, ErrReservedName)
	}
	claimed, err := r.claimable(name, v)
	if err != nil {
		return err
	}

	i, exists := r.index[name]
	if exists {
		r.release(r.values[i])
	}
	for _, e := range claimed {
		e.owner = r
		e.ownerField = name
	}

	if exists {
		r.values[i] = v
	} else {
		if r.index == nil {
			r.index = make(map[string]int)
		}
		r.index[name] = len(r.names)
		r.names = append(r.names, name)
		r.values = append(r.values, v)
	}
	r.dirty = true
	return nil
}

// Delete removes a field.  It reports whether the field existed.
func (r *Record) Delete(name string) bool {
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.release(r.values[i])
	r.names = append(r.names[:i], r.names[i+1:]...)
	r.values = append(r.values[:i], r.values[i+1:]...)
	delete(r.index, name)
	for j := i; j < len(r.names); j++ {
		r.index[r.names[j]] = j
	}
	r.dirty = true
	return true
}

// Clear removes every field.
func (r *Record) Clear() {
	for _, v := range r.values {
		r.release(v)
	}
	r.names = nil
	r.values = nil
	r.index = nil
	r.dirty = true
}

func (r *Record) claimable(name string, v Value) ([]*Record, error) {
	var claimed []*Record
	err := walkEmbedded(v, func(e *Record) error {
		if e.owner != nil && (e.owner != r || e.ownerField != name) {
			return fmt.Errorf("field %q: %w", name, ErrAliasedEmbedded)
		}
		for a := r; a != nil; a = a.owner {
			if a == e {
				return fmt.Errorf("field %q: embedding an enclosing record: %w", name, ErrAliasedEmbedded)
			}
		}
		for _, c := range claimed {
			if c == e {
				return fmt.Errorf("field %q: record embedded twice: %w", name, ErrAliasedEmbedded)
			}
		}
		claimed = append(claimed, e)
		return nil
	})
	return claimed, err
}

func (r *Record) release(v Value) {
	_ = walkEmbedded(v, func(e *Record) error {
		if e.owner == r {
			e.owner = nil
			e.ownerField = ""
		}
		return nil
	})
}

// walkEmbedded calls fn for every embedded record directly held by v or by
// collections within v.  It does not descend into the records themselves.
func walkEmbedded(v Value, fn func(*Record) error) error {
	switch v.kind {
	case KindEmbedded:
		if v.rec != nil {
			return fn(v.rec)
		}
	case KindList, KindSet, KindMap:
		for _, item := range v.items {
			if err := walkEmbedded(item, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceFrom moves the fields of src into r, replacing r's fields.  Embedded
// records move along with their fields.
func (r *Record) replaceFrom(src *Record) {
	for _, v := range r.values {
		r.release(v)
	}
	r.names = src.names
	r.values = src.values
	r.index = src.index
	for i, v := range r.values {
		name := r.names[i]
		_ = walkEmbedded(v, func(e *Record) error {
			e.owner = r
			e.ownerField = name
			return nil
		})
	}
	src.names, src.values, src.index = nil, nil, nil
	r.dirty = true
}

// Equal reports whether r and o have the same class and fields.  Identity and
// version are not compared.
func (r *Record) Equal(o *Record) bool {
	return equalRecords(r, o, nil)
}

// String formats the record for debugging.
func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	var buf strings.Builder
	buf.WriteString(r.class)
	if r.identified {
		buf.WriteString(r.id.String())
	}
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(name))
		buf.WriteByte(':')
		buf.WriteString(r.values[i].String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// Links returns every link held by the record, including links inside
// collections and embedded records, with the field path of each.
func (r *Record) Links() []LinkRef {
	var out []LinkRef
	r.collectLinks("", &out)
	return out
}

func (r *Record) collectLinks(path string, out *[]LinkRef) {
	for i, name := range r.names {
		collectLinks(r.values[i], joinPath(path, name), out)
	}
}

func collectLinks(v Value, path string, out *[]LinkRef) {
	switch v.kind {
	case KindLink:
		*out = append(*out, LinkRef{Path: path, Link: v.link})
	case KindEmbedded:
		v.rec.collectLinks(path, out)
	case KindList, KindSet, KindLinkBag:
		for i, item := range v.items {
			collectLinks(item, elemPath(path, i), out)
		}
	case KindMap:
		for i, k := range v.keys {
			collectLinks(v.items[i], joinPath(path, k), out)
		}
	}
}
