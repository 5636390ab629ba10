// Package deb822 implements a streaming parser and writer for RFC-822-style
// control stanzas: the textual format used by dpkg's status file, available
// file, and update journal (spec.md §4.2).
//
// A stanza is a sequence of fields terminated by one or more blank lines or
// EOF. Each field is `FieldName:` followed by a value that may continue onto
// following lines, each of which begins with whitespace.
package deb822

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// nicknames rewrites legacy field names to their canonical modern form
// before any lookup happens, matching dpkg's fixed nickname table.
var nicknames = map[string]string{
	"recommended":       "Recommends",
	"optional":          "Suggests",
	"class":             "Priority",
	"package-revision":  "Revision",
	"package_revision":  "Revision",
}

// CanonicalFieldName rewrites a nickname (matched case-insensitively) to its
// canonical field name and returns any other name unchanged, casing
// included. Comparison of field names is case-insensitive, so lookups
// lower-case the result.
func CanonicalFieldName(name string) string {
	lower := strings.ToLower(name)
	if nick, ok := nicknames[lower]; ok {
		return nick
	}
	return name
}

// Field is one name/value pair within a Stanza, in the order it was parsed
// (or added, for a Stanza built up programmatically).
type Field struct {
	Name  string
	Value string
}

// Stanza is one deb822 record: an ordered sequence of fields. Lookups are
// case-insensitive; order is preserved for round-tripping and for writers
// that want a specific field order (see pkgdb's canonical write order).
type Stanza struct {
	Fields []Field

	index map[string]int // lower(canonical name) -> index into Fields
}

// NewStanza returns an empty Stanza ready for Set calls.
func NewStanza() *Stanza {
	return &Stanza{index: make(map[string]int)}
}

func (s *Stanza) ensureIndex() {
	if s.index == nil {
		s.index = make(map[string]int, len(s.Fields))
		for i, f := range s.Fields {
			s.index[strings.ToLower(CanonicalFieldName(f.Name))] = i
		}
	}
}

// Get returns the value of the named field (case-insensitive, nickname
// aware) and whether it was present.
func (s *Stanza) Get(name string) (string, bool) {
	s.ensureIndex()
	key := strings.ToLower(CanonicalFieldName(name))
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.Fields[i].Value, true
}

// Has reports whether the named field is present.
func (s *Stanza) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set adds or overwrites the named field, preserving its original position
// if it already existed, or appending it otherwise.
func (s *Stanza) Set(name, value string) {
	s.ensureIndex()
	key := strings.ToLower(CanonicalFieldName(name))
	if i, ok := s.index[key]; ok {
		s.Fields[i].Value = value
		return
	}
	s.index[key] = len(s.Fields)
	s.Fields = append(s.Fields, Field{Name: name, Value: value})
}

// Delete removes the named field, if present.
func (s *Stanza) Delete(name string) {
	s.ensureIndex()
	key := strings.ToLower(CanonicalFieldName(name))
	i, ok := s.index[key]
	if !ok {
		return
	}
	s.Fields = append(s.Fields[:i], s.Fields[i+1:]...)
	delete(s.index, key)
	for k, v := range s.index {
		if v > i {
			s.index[k] = v - 1
		}
	}
}

// Parser reads a sequence of stanzas from an underlying byte stream.
type Parser struct {
	r    *bufio.Reader
	done bool
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r)}
}

// NewParserFromBytes returns a Parser reading from an in-memory slice.
func NewParserFromBytes(b []byte) *Parser {
	return NewParser(strings.NewReader(string(b)))
}

// Next reads and returns the next stanza, or io.EOF if the stream is
// exhausted. A stanza is terminated by one or more blank lines, or by EOF.
// Leading blank lines between stanzas are skipped.
func (p *Parser) Next() (*Stanza, error) {
	if p.done {
		return nil, io.EOF
	}

	st := NewStanza()
	var curName string
	var curVal strings.Builder
	haveField := false
	sawAnyLine := false

	flush := func() error {
		if !haveField {
			return nil
		}
		name := curName
		canon := CanonicalFieldName(name)
		if len(canon) < 2 {
			return fmt.Errorf("deb822: field name %q is too short", name)
		}
		if st.Has(canon) {
			return fmt.Errorf("deb822: duplicate field %q in stanza", canon)
		}
		st.Set(name, strings.TrimRight(curVal.String(), "\n"))
		haveField = false
		curVal.Reset()
		return nil
	}

	for {
		line, err := p.r.ReadString('\n')
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			return nil, err
		}
		hadNewline := strings.HasSuffix(line, "\n")
		trimmed := strings.TrimSuffix(line, "\n")

		if trimmed == "" && !hadNewline && atEOF {
			// Nothing left to read.
			p.done = true
			if !sawAnyLine {
				return nil, io.EOF
			}
			if err := flush(); err != nil {
				return nil, err
			}
			return st, nil
		}

		if strings.Contains(trimmed, "\x1a") {
			return nil, fmt.Errorf("deb822: literal ^Z found inside stanza")
		}

		if trimmed == "" {
			// Blank line: stanza terminator, unless we've not started one.
			if !sawAnyLine {
				if atEOF {
					p.done = true
					return nil, io.EOF
				}
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			if atEOF {
				p.done = true
			}
			return st, nil
		}

		sawAnyLine = true

		if trimmed[0] == ' ' || trimmed[0] == '\t' {
			if strings.TrimSpace(trimmed) == "" {
				return nil, fmt.Errorf("deb822: blank line in value")
			}
			if !haveField {
				return nil, fmt.Errorf("deb822: continuation line with no preceding field")
			}
			curVal.WriteByte('\n')
			// A lone " ." stands for an empty line within the value.
			if strings.TrimSpace(trimmed) != "." {
				curVal.WriteString(trimmed)
			}
		} else {
			if err := flush(); err != nil {
				return nil, err
			}
			idx := strings.IndexByte(trimmed, ':')
			if idx < 0 {
				return nil, fmt.Errorf("deb822: line %q has no ':'", trimmed)
			}
			name := strings.TrimRight(trimmed[:idx], " \t")
			if name == "" {
				return nil, fmt.Errorf("deb822: empty field name")
			}
			val := strings.TrimLeft(trimmed[idx+1:], " \t")
			curName = name
			curVal.WriteString(val)
			haveField = true
		}

		if atEOF {
			p.done = true
			if err := flush(); err != nil {
				return nil, err
			}
			return st, nil
		}
	}
}

// Write serializes the stanza to w in field order, folding multi-line
// values with a leading space on each continuation line, terminated by a
// single blank line.
func Write(w io.Writer, s *Stanza) error {
	for _, f := range s.Fields {
		lines := strings.Split(f.Value, "\n")
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, lines[0]); err != nil {
			return err
		}
		for _, l := range lines[1:] {
			if strings.TrimSpace(l) == "" {
				if _, err := fmt.Fprintf(w, " .\n"); err != nil {
					return err
				}
				continue
			}
			if !strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t") {
				l = " " + l
			}
			if _, err := fmt.Fprintf(w, "%s\n", l); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
