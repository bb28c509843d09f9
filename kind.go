package recjson

import "strconv"

// Kind enumerates the value kinds a Record field can hold.
type Kind uint8

// Value kinds.  The zero Kind is KindNull.
const (
	KindNull Kind = iota
	KindBool
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindByte
	KindBinary
	KindString
	KindDecimal
	KindDate
	KindDateTime
	KindLink
	KindEmbedded
	KindList
	KindSet
	KindMap
	KindLinkBag
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindShort:    "short",
	KindInt:      "int",
	KindLong:     "long",
	KindFloat:    "float",
	KindDouble:   "double",
	KindByte:     "byte",
	KindBinary:   "binary",
	KindString:   "string",
	KindDecimal:  "decimal",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindLink:     "link",
	KindEmbedded: "embedded",
	KindList:     "list",
	KindSet:      "set",
	KindMap:      "map",
	KindLinkBag:  "linkbag",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsCollection reports whether values of kind k hold other values.
func (k Kind) IsCollection() bool {
	switch k {
	case KindList, KindSet, KindMap, KindLinkBag:
		return true
	}
	return false
}
