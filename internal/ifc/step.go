// Package ifc reads IFC models in the STEP physical file encoding
// (ISO 10303-21) and extracts spaces, equipment and materials from them.
package ifc

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotSTEP is returned for input without an ISO-10303-21 header.
var ErrNotSTEP = errors.New("not an ISO-10303-21 file")

// Ref points at another instance (#123).
type Ref int

// Enum is an enumeration literal such as .ELEMENT.
type Enum string

// Typed wraps a value in a defined type, e.g. IFCLABEL('x').
type Typed struct {
	Type  string
	Value any
}

// Derived is the '*' placeholder for attributes derived by a subtype.
type Derived struct{}

// Entity is one instance line of the DATA section. Args hold string, float64,
// Ref, Enum, Typed, Derived, []any or nil for '$'.
type Entity struct {
	ID   int
	Type string
	Args []any
}

// Model is a parsed DATA section.
type Model struct {
	Entities map[int]*Entity
	byType   map[string][]*Entity
}

// Parse reads a STEP file. Complex (multi-type) instances are skipped.
func Parse(data []byte) (*Model, error) {
	if !bytes.Contains(data[:min(len(data), 256)], []byte("ISO-10303-21")) {
		return nil, ErrNotSTEP
	}
	start := bytes.Index(data, []byte("DATA;"))
	if start < 0 {
		return nil, fmt.Errorf("ifc: missing DATA section")
	}
	body := data[start+len("DATA;"):]

	m := &Model{Entities: make(map[int]*Entity), byType: make(map[string][]*Entity)}
	for _, stmt := range splitStatements(body) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "ENDSEC" {
			break
		}
		if !strings.HasPrefix(stmt, "#") {
			continue
		}
		e, err := parseInstance(stmt)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		m.Entities[e.ID] = e
		m.byType[e.Type] = append(m.byType[e.Type], e)
	}
	if len(m.Entities) == 0 {
		return nil, fmt.Errorf("ifc: no instances in DATA section")
	}
	for _, list := range m.byType {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return m, nil
}

// ByType returns instances of the given upper-case types ordered by id.
func (m *Model) ByType(types ...string) []*Entity {
	var out []*Entity
	for _, t := range types {
		out = append(out, m.byType[t]...)
	}
	if len(types) > 1 {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out
}

// Get resolves a reference.
func (m *Model) Get(r Ref) *Entity {
	return m.Entities[int(r)]
}

// Len is the number of parsed instances.
func (m *Model) Len() int { return len(m.Entities) }

func (e *Entity) arg(i int) any {
	if e == nil || i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// String returns a string attribute, unwrapping typed values. Typed numbers
// such as IFCREAL(2.5) are formatted in their shortest form.
func (e *Entity) String(i int) string {
	switch v := e.arg(i).(type) {
	case string:
		return v
	case Typed:
		switch tv := v.Value.(type) {
		case string:
			return tv
		case float64:
			return strconv.FormatFloat(tv, 'f', -1, 64)
		case Enum:
			return string(tv)
		}
	case Enum:
		return string(v)
	}
	return ""
}

// Float returns a numeric attribute, unwrapping typed values.
func (e *Entity) Float(i int) (float64, bool) {
	switch v := e.arg(i).(type) {
	case float64:
		return v, true
	case Typed:
		f, ok := v.Value.(float64)
		return f, ok
	}
	return 0, false
}

// Ref returns a reference attribute.
func (e *Entity) Ref(i int) (Ref, bool) {
	r, ok := e.arg(i).(Ref)
	return r, ok
}

// Refs returns the references of a list attribute.
func (e *Entity) Refs(i int) []Ref {
	list, _ := e.arg(i).([]any)
	out := make([]Ref, 0, len(list))
	for _, v := range list {
		if r, ok := v.(Ref); ok {
			out = append(out, r)
		}
	}
	return out
}

// splitStatements cuts on ';' outside strings and comments.
func splitStatements(b []byte) []string {
	var (
		out   []string
		cur   strings.Builder
		inStr bool
	)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case inStr:
			cur.WriteByte(c)
			if c == '\'' {
				if i+1 < len(b) && b[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inStr = false
				}
			}
		case c == '\'':
			inStr = true
			cur.WriteByte(c)
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			end := bytes.Index(b[i+2:], []byte("*/"))
			if end < 0 {
				i = len(b)
			} else {
				i += end + 3
			}
		case c == ';':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func parseInstance(stmt string) (*Entity, error) {
	eq := strings.IndexByte(stmt, '=')
	if eq < 0 {
		return nil, fmt.Errorf("ifc: malformed instance %q", clip(stmt))
	}
	id, err := strconv.Atoi(strings.TrimSpace(stmt[1:eq]))
	if err != nil {
		return nil, fmt.Errorf("ifc: bad instance id in %q", clip(stmt))
	}
	rest := strings.TrimSpace(stmt[eq+1:])
	if strings.HasPrefix(rest, "(") {
		return nil, nil
	}
	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return nil, fmt.Errorf("ifc: malformed instance #%d", id)
	}
	p := &argParser{s: rest[open:]}
	args, err := p.list()
	if err != nil {
		return nil, fmt.Errorf("ifc: instance #%d: %w", id, err)
	}
	return &Entity{ID: id, Type: strings.ToUpper(strings.TrimSpace(rest[:open])), Args: args}, nil
}

type argParser struct {
	s   string
	pos int
}

func (p *argParser) skipSpace() {
	for p.pos < len(p.s) && strings.IndexByte(" \t\r\n", p.s[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *argParser) list() ([]any, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at %d", p.pos)
	}
	p.pos++
	out := []any{}
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ')' {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("unterminated list")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected %q at %d", p.s[p.pos], p.pos)
		}
	}
}

func (p *argParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch c := p.s[p.pos]; {
	case c == '$':
		p.pos++
		return nil, nil
	case c == '*':
		p.pos++
		return Derived{}, nil
	case c == '(':
		return p.list()
	case c == '\'':
		return p.str()
	case c == '#':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		n, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("bad reference at %d", start)
		}
		return Ref(n), nil
	case c == '.':
		end := strings.IndexByte(p.s[p.pos+1:], '.')
		if end < 0 {
			return nil, fmt.Errorf("unterminated enum at %d", p.pos)
		}
		v := Enum(p.s[p.pos+1 : p.pos+1+end])
		p.pos += end + 2
		return v, nil
	case c == '"':
		// binary literal; kept as its hex text
		end := strings.IndexByte(p.s[p.pos+1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("unterminated binary at %d", p.pos)
		}
		v := p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return v, nil
	case c == '-' || c == '+' || isDigit(c):
		start := p.pos
		p.pos++
		for p.pos < len(p.s) && strings.IndexByte("0123456789.eE+-", p.s[p.pos]) >= 0 {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.s[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p.s[start:p.pos])
		}
		return f, nil
	case isUpper(c):
		start := p.pos
		for p.pos < len(p.s) && (isUpper(p.s[p.pos]) || isDigit(p.s[p.pos]) || p.s[p.pos] == '_') {
			p.pos++
		}
		name := p.s[start:p.pos]
		args, err := p.list()
		if err != nil {
			return nil, err
		}
		var inner any
		if len(args) == 1 {
			inner = args[0]
		} else {
			inner = args
		}
		return Typed{Type: name, Value: inner}, nil
	default:
		return nil, fmt.Errorf("unexpected %q at %d", c, p.pos)
	}
}

func (p *argParser) str() (string, error) {
	p.pos++ // opening quote
	var raw strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.s) && p.s[p.pos+1] == '\'' {
				raw.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return DecodeString(raw.String()), nil
		}
		raw.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isUpper(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func clip(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
