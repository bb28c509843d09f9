package recjson

import (
	"fmt"
	"math"
	"strconv"
)

// RID identifies a record by the cluster that holds it and its position in
// that cluster.
//
// The zero RID is #0:0, a valid persistent identity; records without an
// identity use NoRID.
type RID struct {
	Cluster  int32
	Position int64
}

// NoRID is the reserved "no record" identity, #-1:-1.
var NoRID = RID{Cluster: -1, Position: -1}

// IsValid reports whether rid is anything but NoRID.
func (rid RID) IsValid() bool {
	return rid != NoRID
}

// IsPersistent reports whether rid was assigned by durable storage.
func (rid RID) IsPersistent() bool {
	return rid.Cluster >= 0 && rid.Position >= 0
}

// IsTemporary reports whether rid is a placeholder handed out by a unit of
// work to a record that has not been committed yet.
func (rid RID) IsTemporary() bool {
	return rid.Position < -1
}

func (rid RID) String() string {
	buf := make([]byte, 0, 24)
	return string(rid.appendTo(buf))
}

func (rid RID) appendTo(buf []byte) []byte {
	buf = append(buf, '#')
	buf = strconv.AppendInt(buf, int64(rid.Cluster), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, rid.Position, 10)
	return buf
}

// ParseRID parses the "#<cluster>:<position>" form.  The leading '#' is
// required.
func ParseRID(s string) (RID, error) {
	rid, ok := scanRID([]byte(s))
	if !ok {
		return NoRID, fmt.Errorf("invalid record id %q", s)
	}
	return rid, nil
}

// IsRIDLiteral reports whether s is exactly a record identifier and would
// therefore decode as a link rather than a string.
func IsRIDLiteral(s string) bool {
	_, ok := scanRID([]byte(s))
	return ok
}

// scanRID matches `#-?[0-9]+:-?[0-9]+` over the whole of b.  Anything else,
// including surrounding white space or a leading '+', is not a RID.
func scanRID(b []byte) (RID, bool) {
	if len(b) < 4 || b[0] != '#' {
		return NoRID, false
	}
	colon := -1
	for i := 1; i < len(b); i++ {
		if b[i] == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return NoRID, false
	}
	cluster, ok := scanRIDPart(b[1:colon])
	if !ok || cluster < math.MinInt32 || cluster > math.MaxInt32 {
		return NoRID, false
	}
	position, ok := scanRIDPart(b[colon+1:])
	if !ok {
		return NoRID, false
	}
	return RID{Cluster: int32(cluster), Position: position}, true
}

func scanRIDPart(b []byte) (int64, bool) {
	digits := b
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}
	if len(digits) == 0 {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
