// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package recjson

import (
	"fmt"
	"io"
)

// Decoder reads and decodes JSON objects into Records.  Objects may be
// separated by optional white space or may be in a well-formed JSON array.
type Decoder struct {
	arrayFinished  bool
	arrayStarted   bool
	arrayOff       int
	needValue      bool
	extJSONAllowed bool
	lenient        bool
	maxDepth       int
	uow            UnitOfWork
	data           []byte
	pos            int
}

// NewDecoder reads all of r and returns a decoder over it.  See
// NewDecoderBytes.
func NewDecoder(r io.Reader) (*Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading json: %w", err)
	}
	return NewDecoderBytes(data)
}

// NewDecoderBytes returns a new decoder over data.  If a UTF-8 byte-order-mark
// (BOM) exists, it will be skipped.  Because only UTF-8 is supported, other
// BOMs are errors.  This function consumes leading white space and checks if
// the first character is '['.  If so, the input format is expected to be a
// single JSON array of objects and the stream will consist of the objects in
// the array.  If the input holds nothing but white space, it returns io.EOF.
func NewDecoderBytes(data []byte) (*Decoder, error) {
	skip, err := bomLength(data)
	if err != nil {
		return nil, &ParseError{Offset: 0, Msg: err.Error(), Err: err}
	}

	d := &Decoder{
		data:     data,
		pos:      skip,
		maxDepth: 200,
	}

	s := d.scanner()
	if s.atEOF() {
		return nil, io.EOF
	}
	if data[s.pos] == '[' {
		d.arrayStarted = true
		d.arrayOff = s.pos
		s.pos++
	}
	d.pos = s.pos

	return d, nil
}

// ExtJSON toggles whether MongoDB Extended JSON type wrappers such as
// {"$numberLong": "42"} are interpreted by the decoder.
func (d *Decoder) ExtJSON(b bool) {
	d.extJSONAllowed = b
}

// MaxDepth sets the maximum allowed nesting depth of a JSON object.  The
// default is 200.
func (d *Decoder) MaxDepth(n int) {
	d.maxDepth = n
}

// Lenient toggles acceptance of single-quoted strings, unquoted field names,
// bare record ids such as #12:3 and trailing commas.
func (d *Decoder) Lenient(b bool) {
	d.lenient = b
}

// Bind makes the decoder resolve links through the unit of work.  New records
// read from link snapshots are created by uow and attached to it, and link
// errors are recorded on its Resolver rather than returned.
func (d *Decoder) Bind(uow UnitOfWork) {
	d.uow = uow
}

func (d *Decoder) scanner() *scanner {
	return &scanner{data: d.data, pos: d.pos, lenient: d.lenient}
}

// Decode reads the next JSON object from the input into rec.  The previous
// fields of rec are replaced.  On error, rec is left unchanged.  The function
// returns io.EOF if no objects remain in the stream.
func (d *Decoder) Decode(rec *Record) error {
	if d.arrayFinished {
		return io.EOF
	}

	p := d.parser()
	tok, err := p.next()
	if err != nil {
		return err
	}

	switch tok.kind {
	case tokBeginObject:
	case tokEOF:
		if d.arrayStarted {
			return p.tokenError(tok, "expecting object or end of array")
		}
		return io.EOF
	case tokEndArray:
		if d.arrayStarted && (!d.needValue || d.lenient) {
			if !p.atEOF() {
				return p.tokenError(token{off: p.pos}, "unexpected content after end of array")
			}
			d.arrayFinished = true
			d.pos = p.pos
			return io.EOF
		}
		return p.tokenError(tok, "Decode only supports object decoding")
	default:
		return p.tokenError(tok, "Decode only supports object decoding")
	}

	root, err := p.parseObject(tok)
	if err != nil {
		return err
	}

	// In array mode, consume the value-separator or the end of the array.
	needValue := false
	arrayFinished := false
	if d.arrayStarted {
		tok, err = p.next()
		if err != nil {
			return err
		}
		switch tok.kind {
		case tokValueSep:
			needValue = true
		case tokEndArray:
			if !p.atEOF() {
				return p.tokenError(token{off: p.pos}, "unexpected content after end of array")
			}
			arrayFinished = true
		default:
			return p.tokenError(tok, "expecting value-separator or end of array")
		}
	}

	if err := d.bind(root, rec); err != nil {
		return err
	}
	d.pos = p.pos
	d.needValue = needValue
	d.arrayFinished = arrayFinished
	return nil
}

func (d *Decoder) parser() *parser {
	return &parser{scanner: *d.scanner(), maxDepth: d.maxDepth}
}

// decodeOnly reads exactly one JSON object, which must be the whole input.
func (d *Decoder) decodeOnly(rec *Record) error {
	if d.arrayStarted {
		return newParseError(d.data, d.arrayOff, nil, "root value must be an object")
	}

	p := d.parser()
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.kind != tokBeginObject {
		return p.tokenError(tok, "root value must be an object")
	}
	root, err := p.parseObject(tok)
	if err != nil {
		return err
	}
	if !p.atEOF() {
		return p.tokenError(token{off: p.pos}, "unexpected content after root object")
	}

	if err := d.bind(root, rec); err != nil {
		return err
	}
	d.pos = p.pos
	return nil
}

// Unmarshal decodes a single JSON object into rec, replacing its fields.  The
// input must hold exactly one object.  On error, rec is left unchanged.  The
// function returns io.EOF if the input is empty.
//
// Links are not resolved against any unit of work; a link to #-1:-1 is
// returned as a *LinkError.
func Unmarshal(data []byte, rec *Record) error {
	d, err := NewDecoderBytes(data)
	if err != nil {
		return err
	}
	return d.decodeOnly(rec)
}

// UnmarshalExtJSON decodes a single JSON object that may contain Extended
// JSON type wrappers.  It otherwise works like Unmarshal.
func UnmarshalExtJSON(data []byte, rec *Record) error {
	d, err := NewDecoderBytes(data)
	if err != nil {
		return err
	}
	d.ExtJSON(true)
	return d.decodeOnly(rec)
}

// UnmarshalWith decodes a single JSON object into rec, resolving links
// through uow.  See Decoder.Bind.
func UnmarshalWith(data []byte, rec *Record, uow UnitOfWork) error {
	d, err := NewDecoderBytes(data)
	if err != nil {
		return err
	}
	d.Bind(uow)
	return d.decodeOnly(rec)
}
