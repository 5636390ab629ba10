package deb822

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestParseTwoStanzas(t *testing.T) {
	input := "Package: a\nVersion: 1\n\nPackage: b\nVersion: 2\n"
	p := NewParser(strings.NewReader(input))

	s1, err := p.Next()
	if err != nil {
		t.Fatalf("first stanza: %v", err)
	}
	if v, _ := s1.Get("Package"); v != "a" {
		t.Errorf("got %q", v)
	}

	s2, err := p.Next()
	if err != nil {
		t.Fatalf("second stanza: %v", err)
	}
	if v, _ := s2.Get("version"); v != "2" {
		t.Errorf("got %q", v)
	}

	if _, err := p.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestContinuationLines(t *testing.T) {
	input := "Description: short\n long line one\n .\n long line two\n"
	p := NewParser(strings.NewReader(input))
	s, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	v, _ := s.Get("Description")
	want := "short\n long line one\n\n long line two"
	if v != want {
		t.Errorf("got %q, want %q", v, want)
	}
}

func TestBlankLineInValueIsError(t *testing.T) {
	input := "Description: short\n   \nmore\n"
	p := NewParser(strings.NewReader(input))
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected error for blank line in value")
	}
}

func TestDuplicateFieldIsError(t *testing.T) {
	input := "Package: a\nPackage: b\n"
	p := NewParser(strings.NewReader(input))
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected error for duplicate field")
	}
}

func TestNicknameRewriting(t *testing.T) {
	input := "Package: a\nRecommended: libfoo\nOptional: libbar\nClass: optional\n"
	p := NewParser(strings.NewReader(input))
	s, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v, ok := s.Get("Recommends"); !ok || v != "libfoo" {
		t.Errorf("Recommends = %q, %v", v, ok)
	}
	if v, ok := s.Get("Suggests"); !ok || v != "libbar" {
		t.Errorf("Suggests = %q, %v", v, ok)
	}
	if v, ok := s.Get("Priority"); !ok || v != "optional" {
		t.Errorf("Priority = %q, %v", v, ok)
	}
}

func TestControlCharacterRejected(t *testing.T) {
	input := "Package: a\x1ab\n"
	p := NewParser(strings.NewReader(input))
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected error for embedded ^Z")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	s := NewStanza()
	s.Set("Package", "foo")
	s.Set("Description", "one line\nsecond line")

	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := NewParser(&buf)
	got, err := p.Next()
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if v, _ := got.Get("Package"); v != "foo" {
		t.Errorf("got %q", v)
	}
	if v, _ := got.Get("Description"); v != "one line\n second line" {
		t.Errorf("got %q", v)
	}
}

func TestSingleCharFieldNameIsError(t *testing.T) {
	input := "X: a\n"
	p := NewParser(strings.NewReader(input))
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected error for 1-char field name")
	}
}
