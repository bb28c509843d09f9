package recjson

import "fmt"

type nodeKind uint8

const (
	nodeNull nodeKind = iota
	nodeTrue
	nodeFalse
	nodeNumber
	nodeString
	nodeRef
	nodeObject
	nodeArray
)

var nodeKindNames = [...]string{
	nodeNull:   "null",
	nodeTrue:   "true",
	nodeFalse:  "false",
	nodeNumber: "number",
	nodeString: "string",
	nodeRef:    "record id",
	nodeObject: "object",
	nodeArray:  "array",
}

func (k nodeKind) String() string { return nodeKindNames[k] }

// node is an untyped JSON value.  Objects keep their members in input order.
type node struct {
	kind    nodeKind
	off     int
	raw     []byte // number text, record id, or escaped string content
	str     string // unescaped string content
	members []member
	elems   []*node
}

type member struct {
	name string
	off  int
	val  *node
}

// get returns the value of the named member, or nil.
func (n *node) get(name string) *node {
	for i := range n.members {
		if n.members[i].name == name {
			return n.members[i].val
		}
	}
	return nil
}

// parser builds a node tree from the scanner's tokens.
type parser struct {
	scanner
	curDepth int
	maxDepth int
}

func (p *parser) enter(off int) error {
	p.curDepth++
	if p.curDepth > p.maxDepth {
		return newParseError(p.data, off, nil, "maximum depth %d exceeded", p.maxDepth)
	}
	return nil
}

func (p *parser) tokenError(tok token, msg string) *ParseError {
	return newParseError(p.data, tok.off, nil, "%s", msg)
}

func (p *parser) parseValue(tok token) (*node, error) {
	switch tok.kind {
	case tokBeginObject:
		return p.parseObject(tok)
	case tokBeginArray:
		return p.parseArray(tok)
	case tokString:
		s, err := p.unescapeToken(tok)
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeString, off: tok.off, raw: tok.raw, str: s}, nil
	case tokNumber:
		return &node{kind: nodeNumber, off: tok.off, raw: tok.raw}, nil
	case tokRef:
		return &node{kind: nodeRef, off: tok.off, raw: tok.raw, str: string(tok.raw)}, nil
	case tokWord:
		switch string(tok.raw) {
		case "true":
			return &node{kind: nodeTrue, off: tok.off}, nil
		case "false":
			return &node{kind: nodeFalse, off: tok.off}, nil
		case "null":
			return &node{kind: nodeNull, off: tok.off}, nil
		}
		return nil, p.tokenError(tok, "invalid literal")
	}
	return nil, p.tokenError(tok, "expecting value")
}

func (p *parser) unescapeToken(tok token) (string, error) {
	if !tok.escaped {
		return string(tok.raw), nil
	}
	s, bad, err := unescape(tok.raw, p.lenient)
	if err != nil {
		return "", newParseError(p.data, tok.off+1+bad, nil, "%v", err)
	}
	return s, nil
}

func (p *parser) parseObject(open token) (*node, error) {
	if err := p.enter(open.off); err != nil {
		return nil, err
	}
	defer func() { p.curDepth-- }()

	n := &node{kind: nodeObject, off: open.off}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.kind == tokEndObject {
		return n, nil
	}

	var seen map[string]struct{}
	expecting := "expecting key or end of object"
	for {
		var name string
		switch {
		case tok.kind == tokString:
			name, err = p.unescapeToken(tok)
			if err != nil {
				return nil, err
			}
		case tok.kind == tokWord && p.lenient:
			name = string(tok.raw)
		default:
			return nil, p.tokenError(tok, expecting)
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		if _, dup := seen[name]; dup {
			return nil, p.tokenError(tok, fmt.Sprintf("duplicate key %q", name))
		}
		seen[name] = struct{}{}
		keyOff := tok.off

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		if tok.kind != tokNameSep {
			return nil, p.tokenError(tok, "expecting ':'")
		}

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		val, err := p.parseValue(tok)
		if err != nil {
			return nil, err
		}
		n.members = append(n.members, member{name: name, off: keyOff, val: val})

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEndObject:
			return n, nil
		case tokValueSep:
		default:
			return nil, p.tokenError(tok, "expecting value-separator or end of object")
		}

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEndObject && p.lenient {
			return n, nil
		}
		expecting = "expecting key"
	}
}

func (p *parser) parseArray(open token) (*node, error) {
	if err := p.enter(open.off); err != nil {
		return nil, err
	}
	defer func() { p.curDepth-- }()

	n := &node{kind: nodeArray, off: open.off}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.kind == tokEndArray {
		return n, nil
	}

	for {
		elem, err := p.parseValue(tok)
		if err != nil {
			return nil, err
		}
		n.elems = append(n.elems, elem)

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEndArray:
			return n, nil
		case tokValueSep:
		default:
			return nil, p.tokenError(tok, "expecting value-separator or end of array")
		}

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEndArray && p.lenient {
			return n, nil
		}
	}
}
