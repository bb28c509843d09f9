package recjson

import (
	"strconv"
	"strings"
)

// FormatOptions control what the encoder writes.
type FormatOptions struct {
	// RID writes @rid on the root record.
	RID bool
	// Version writes @version on the root and on expanded links.
	Version bool
	// Class writes @class on the root and on expanded links.  Embedded
	// records always carry their class.
	Class bool
	// Type writes @type on the root and on expanded links.  Embedded records
	// always carry it.
	Type bool
	// KeepTypes writes the @fieldTypes hints needed to read every value back
	// with its exact kind.
	KeepTypes bool
	// FetchDepth is the number of link hops written inline rather than as
	// bare record ids.  A negative value expands every reachable link.
	FetchDepth int
	// NaNAsNull writes non-finite floats as null when KeepTypes is off.
	NaNAsNull bool
	// DateAsLong writes dates and date-times as epoch milliseconds.
	DateAsLong bool
	// Indent is the number of spaces per level; zero writes compact output.
	Indent int
	// Lenient is only meaningful to decoders.
	Lenient bool
}

// DefaultFormat is the format used for an empty format string: every
// attribute and exact types.
var DefaultFormat = FormatOptions{
	RID:       true,
	Version:   true,
	Class:     true,
	Type:      true,
	KeepTypes: true,
}

// ParseFormat parses a comma-separated list of format keywords:
//
//	rid, version, class, type, keepTypes, nanAsNull, dateAsLong, lenient,
//	prettyPrint, indent:N, fetchDepth:N, fetchPlan:*:N
//
// Unknown keywords are ignored.  The empty string yields DefaultFormat.
func ParseFormat(s string) FormatOptions {
	if strings.TrimSpace(s) == "" {
		return DefaultFormat
	}
	var opts FormatOptions
	for _, kw := range strings.Split(s, ",") {
		kw = strings.TrimSpace(kw)
		switch {
		case kw == "rid":
			opts.RID = true
		case kw == "version":
			opts.Version = true
		case kw == "class":
			opts.Class = true
		case kw == "type":
			opts.Type = true
		case kw == "keepTypes":
			opts.KeepTypes = true
		case kw == "nanAsNull":
			opts.NaNAsNull = true
		case kw == "dateAsLong":
			opts.DateAsLong = true
		case kw == "lenient":
			opts.Lenient = true
		case kw == "prettyPrint":
			if opts.Indent == 0 {
				opts.Indent = 2
			}
		case strings.HasPrefix(kw, "indent:"):
			if n, err := strconv.Atoi(kw[len("indent:"):]); err == nil && n >= 0 {
				opts.Indent = n
			}
		case strings.HasPrefix(kw, "fetchDepth:"):
			if n, err := strconv.Atoi(kw[len("fetchDepth:"):]); err == nil {
				opts.FetchDepth = n
			}
		case strings.HasPrefix(kw, "fetchPlan:"):
			opts.FetchDepth = parseFetchPlan(kw[len("fetchPlan:"):], opts.FetchDepth)
		}
	}
	return opts
}

// parseFetchPlan reads the depth of the wildcard entry of a fetch plan such
// as "*:2".  Plans naming specific fields are not supported and leave the
// depth unchanged.
func parseFetchPlan(plan string, depth int) int {
	for _, entry := range strings.Fields(plan) {
		if !strings.HasPrefix(entry, "*:") {
			continue
		}
		if n, err := strconv.Atoi(entry[2:]); err == nil {
			depth = n
		}
	}
	return depth
}

// String returns the keyword form of opts.
func (opts FormatOptions) String() string {
	var kws []string
	add := func(on bool, kw string) {
		if on {
			kws = append(kws, kw)
		}
	}
	add(opts.RID, "rid")
	add(opts.Version, "version")
	add(opts.Class, "class")
	add(opts.Type, "type")
	add(opts.KeepTypes, "keepTypes")
	add(opts.NaNAsNull, "nanAsNull")
	add(opts.DateAsLong, "dateAsLong")
	add(opts.Lenient, "lenient")
	add(opts.Indent > 0, "indent:"+strconv.Itoa(opts.Indent))
	add(opts.FetchDepth != 0, "fetchDepth:"+strconv.Itoa(opts.FetchDepth))
	return strings.Join(kws, ",")
}
