package recjson

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Extended JSON wrappers understood when ExtJSON is enabled:
//
// $oid           -> String (hex)
// $date          -> DateTime, from ISO-8601, {"$numberLong": ...} or a number
// $binary        -> Binary, v2 {"base64", "subType"} or v1 with "$type"
// $symbol        -> String
// $numberInt     -> Int
// $numberLong    -> Long
// $numberDouble  -> Double, including "NaN", "Infinity" and "-Infinity"
// $numberDecimal -> Decimal
//
// Any other $-prefixed object is an ordinary map.

// extJSONValue converts n if it is an Extended JSON wrapper.  It reports
// false for any other object.
func (b *binder) extJSONValue(n *node) (Value, bool, error) {
	if len(n.members) == 0 || len(n.members) > 2 {
		return Value{}, false, nil
	}
	key := n.members[0].name
	if len(key) < 4 || key[0] != '$' {
		return Value{}, false, nil
	}
	v := n.members[0].val

	if len(n.members) == 2 {
		// Only legacy $binary has two keys.
		if key == "$binary" && n.members[1].name == "$type" {
			return b.convertV1Binary(v, n.members[1].val)
		}
		if key == "$type" && n.members[1].name == "$binary" {
			return b.convertV1Binary(n.members[1].val, v)
		}
		return Value{}, false, nil
	}

	switch key {
	case "$oid":
		s, err := b.extString(v, key)
		if err != nil {
			return Value{}, true, err
		}
		if _, err := hex.DecodeString(s); err != nil || len(s) != 24 {
			return Value{}, true, b.errorAt(v, nil, "invalid $oid %q", s)
		}
		return String(s), true, nil
	case "$symbol":
		s, err := b.extString(v, key)
		return String(s), true, err
	case "$numberInt":
		s, err := b.extString(v, key)
		if err != nil {
			return Value{}, true, err
		}
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, true, b.errorAt(v, nil, "int conversion: %v", err)
		}
		return Int(int32(i)), true, nil
	case "$numberLong":
		i, err := b.convertNumberLong(v)
		return Long(i), true, err
	case "$numberDouble":
		s, err := b.extString(v, key)
		if err != nil {
			return Value{}, true, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, true, b.errorAt(v, nil, "float conversion: %v", err)
		}
		if math.IsNaN(f) {
			// strconv accepts "nan"; use the canonical NaN either way
			f = math.NaN()
		}
		return Double(f), true, nil
	case "$numberDecimal":
		s, err := b.extString(v, key)
		if err != nil {
			return Value{}, true, err
		}
		d, err := primitive.ParseDecimal128(s)
		if err != nil {
			return Value{}, true, b.errorAt(v, nil, "invalid $numberDecimal %q", s)
		}
		return Decimal(d), true, nil
	case "$date":
		return b.convertDate(v)
	case "$binary":
		return b.convertV2Binary(v)
	}
	return Value{}, false, nil
}

func (b *binder) extString(n *node, key string) (string, error) {
	if n.kind != nodeString {
		return "", b.errorAt(n, nil, "%s value must be a string", key)
	}
	return n.str, nil
}

func (b *binder) convertNumberLong(n *node) (int64, error) {
	s, err := b.extString(n, "$numberLong")
	if err != nil {
		return 0, err
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, b.errorAt(n, nil, "int conversion: %v", err)
	}
	return i, nil
}

func (b *binder) convertDate(n *node) (Value, bool, error) {
	switch n.kind {
	case nodeString:
		ms, err := parseISO8601toEpochMillis(n.str)
		if err != nil {
			return Value{}, true, b.errorAt(n, nil, "%v", err)
		}
		return dateFromMillis(KindDateTime, ms), true, nil
	case nodeNumber:
		ms, err := strconv.ParseInt(string(n.raw), 10, 64)
		if err != nil {
			return Value{}, true, b.errorAt(n, nil, "int conversion: %v", err)
		}
		return dateFromMillis(KindDateTime, ms), true, nil
	case nodeObject:
		if len(n.members) == 1 && n.members[0].name == "$numberLong" {
			ms, err := b.convertNumberLong(n.members[0].val)
			return dateFromMillis(KindDateTime, ms), true, err
		}
	}
	return Value{}, true, b.errorAt(n, nil, "invalid $date value")
}

// v2 $binary is a document with keys "base64" and "subType".
func (b *binder) convertV2Binary(n *node) (Value, bool, error) {
	if n.kind != nodeObject || len(n.members) != 2 {
		return Value{}, true, b.errorAt(n, nil, "$binary must be a document with base64 and subType")
	}
	payload, subType := n.get("base64"), n.get("subType")
	if payload == nil || subType == nil {
		return Value{}, true, b.errorAt(n, nil, "invalid key for $binary document")
	}
	return b.convertBinary(payload, subType)
}

// v1 $binary is a string, followed by "$type" and no other keys.
func (b *binder) convertV1Binary(payload, subType *node) (Value, bool, error) {
	return b.convertBinary(payload, subType)
}

func (b *binder) convertBinary(payload, subType *node) (Value, bool, error) {
	st, err := b.extString(subType, "subType")
	if err != nil {
		return Value{}, true, err
	}
	if len(st) == 0 || len(st) > 2 {
		return Value{}, true, b.errorAt(subType, nil, "invalid binary subType %q", st)
	}
	if _, err := strconv.ParseUint(st, 16, 8); err != nil {
		return Value{}, true, b.errorAt(subType, nil, "invalid binary subType %q", st)
	}
	s, err := b.extString(payload, "base64")
	if err != nil {
		return Value{}, true, err
	}
	bin, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Value{}, true, b.errorAt(payload, nil, "invalid base64: %v", err)
	}
	return Binary(bin), true, nil
}

var timeFormats = []string{"2006-01-02T15:04:05.999Z07:00", "2006-01-02T15:04:05.999Z0700"}

func parseISO8601toEpochMillis(data string) (int64, error) {
	var t time.Time
	var err error
	for _, format := range timeFormats {
		t, err = time.Parse(format, data)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("invalid $date value string: %s", data)
	}

	return t.Unix()*1e3 + int64(t.Nanosecond())/1e6, nil
}
