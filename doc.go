// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package recjson is a type-preserving JSON codec for a graph-capable document
// record model.  It converts a Record (an ordered set of typed fields, with
// embedded records, collections and links to other records) to JSON text and
// back without losing the distinction between 32 and 64-bit integers, single
// and double precision floats, dates, binary data, non-finite floats and
// strings that merely look like record identifiers.
//
// Wire format
//
// Records are JSON objects.  Keys starting with '@' that are listed below are
// attributes rather than fields:
//
//	@type        "d" marks an object as a full record rather than a plain map
//	@class       the record's declared class
//	@rid         the record's identity, "#<cluster>:<position>"
//	@version     the record's version
//	@fieldTypes  an object mapping field names to one-letter type tags
//	@embedded    true on a linked record that was written inline
//
// Types that JSON cannot express on its own are carried in @fieldTypes.  The
// tag vocabulary is documented on the Tag type.  Elements of arrays are
// hinted with keys of the form "field[i]".
//
// Links
//
// A string of the exact form "#<cluster>:<position>" is a link to another
// record.  While decoding inside a unit of work, links are resolved through
// the unit of work's Resolver: links to records already known to the unit of
// work are bound to the very same *Record, links to records that will only
// receive an identity at commit are bound once that happens, and links that
// can never be satisfied fail the commit with a *LinkError.
//
// Strictness
//
// Decoding is strict by default: unbalanced delimiters, trailing content, a
// value in field-name position and unknown type tags are all errors, and a
// failed decode never modifies the target record.  A lenient mode accepting
// single-quoted strings, unquoted field names, bare link tokens and trailing
// commas can be enabled explicitly.
package recjson
