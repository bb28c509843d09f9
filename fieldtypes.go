package recjson

import (
	"strconv"
	"strings"
)

// Reserved attribute names.  They are never fields.
const (
	attrType       = "@type"
	attrRID        = "@rid"
	attrVersion    = "@version"
	attrClass      = "@class"
	attrFieldTypes = "@fieldTypes"
	attrEmbedded   = "@embedded"
)

// recordType is the only @type value understood: a document record.
const recordType = "d"

func isReservedName(name string) bool {
	switch name {
	case attrType, attrRID, attrVersion, attrClass, attrFieldTypes, attrEmbedded:
		return true
	}
	return false
}

// Tag is a one-character type hint carried in @fieldTypes.
//
//	s Short     x Link
//	i Int       z list of links
//	l Long      n set of links
//	f Float     y map of links
//	d Double    g link bag
//	b Byte      v List
//	B Binary    e Set
//	c Decimal   m Map
//	a Date      w Embedded record
//	t DateTime  S String
type Tag byte

const (
	TagShort    Tag = 's'
	TagInt      Tag = 'i'
	TagLong     Tag = 'l'
	TagFloat    Tag = 'f'
	TagDouble   Tag = 'd'
	TagByte     Tag = 'b'
	TagBinary   Tag = 'B'
	TagDecimal  Tag = 'c'
	TagDate     Tag = 'a'
	TagDateTime Tag = 't'
	TagLink     Tag = 'x'
	TagLinkList Tag = 'z'
	TagLinkSet  Tag = 'n'
	TagLinkMap  Tag = 'y'
	TagLinkBag  Tag = 'g'
	TagList     Tag = 'v'
	TagSet      Tag = 'e'
	TagMap      Tag = 'm'
	TagEmbedded Tag = 'w'
	TagString   Tag = 'S'
)

// Known reports whether t is part of the tag vocabulary.
func (t Tag) Known() bool {
	switch t {
	case TagShort, TagInt, TagLong, TagFloat, TagDouble, TagByte, TagBinary,
		TagDecimal, TagDate, TagDateTime, TagLink, TagLinkList, TagLinkSet,
		TagLinkMap, TagLinkBag, TagList, TagSet, TagMap, TagEmbedded, TagString:
		return true
	}
	return false
}

func (t Tag) String() string { return string(rune(t)) }

// Layouts for dates written as strings.  Date-times are read with any of
// dateTimeLayouts.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var dateTimeLayouts = append(append([]string{}, timeFormats...),
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	dateLayout,
)

// hintKey returns the @fieldTypes key for element i of the value hinted by
// key.
func hintKey(key string, i int) string {
	return key + "[" + strconv.Itoa(i) + "]"
}

// parseLegacyFieldTypes reads the "name=tag,name=tag" form of @fieldTypes.
func parseLegacyFieldTypes(s string, hints map[string]Tag) (bad string, ok bool) {
	if s == "" {
		return "", true
	}
	for _, pair := range strings.Split(s, ",") {
		eq := strings.LastIndexByte(pair, '=')
		if eq < 0 || len(pair)-eq != 2 {
			return pair, false
		}
		hints[pair[:eq]] = Tag(pair[eq+1])
	}
	return "", true
}

// hintSet collects the hints of one object while it is written.
type hintSet struct {
	keys []string
	tags []Tag
}

func (h *hintSet) add(key string, t Tag) {
	h.keys = append(h.keys, key)
	h.tags = append(h.tags, t)
}

func (h *hintSet) empty() bool { return len(h.keys) == 0 }

// ambiguous returns a hint key that names more than one value of the object,
// such as a field called "a[0]" next to a list called "a".
func (h *hintSet) ambiguous(get func(string) (Value, bool)) (string, bool) {
	for _, key := range h.keys {
		if strings.HasSuffix(key, "]") && hintTargets(key, get) > 1 {
			return key, true
		}
	}
	return "", false
}

// hintTargets counts the values that key reaches: a field with that name, or
// an element of an array field addressed by the trailing indexes.
func hintTargets(key string, get func(string) (Value, bool)) int {
	n := 0
	for cut := len(key); cut > 0; cut = strings.LastIndexByte(key[:cut], '[') {
		if v, ok := get(key[:cut]); ok && reachable(v, key[cut:]) {
			n++
		}
	}
	return n
}

func reachable(v Value, indexes string) bool {
	for indexes != "" {
		end := strings.IndexByte(indexes, ']')
		if indexes[0] != '[' || end < 0 {
			return false
		}
		digits := indexes[1:end]
		i, err := strconv.Atoi(digits)
		if err != nil || i < 0 || strconv.Itoa(i) != digits {
			return false
		}
		switch v.kind {
		case KindList, KindSet, KindLinkBag:
		default:
			return false
		}
		if i >= len(v.items) {
			return false
		}
		v = v.items[i]
		indexes = indexes[end+1:]
	}
	return true
}
