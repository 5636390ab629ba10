// Package arfmt is the ar(5) archive codec used by the split-part format
// (spec.md §4.6 / §6). It is a thin layer over github.com/blakesmith/ar —
// the same library the teacher repository uses to assemble the outer
// container of a .deb file — adding the one thing a split part needs that
// the library does not track itself: the exact byte offset at which a
// member's payload begins (PartInfo.HeaderLen). Member names are read from
// the fixed 16-byte ar name field with the trailing '/' and pad spaces
// stripped.
//
// GNU long names (the ar(5) "//" name-table extension) are not resolved:
// Reader reports whatever the 16-byte name field holds, and Writer rejects
// member names longer than 16 bytes. Every member name the split format
// uses ("debian-split", "data.<N>") fits the fixed field.
package arfmt

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/blakesmith/ar"
)

// Member is one decoded ar member: its declared name and its raw payload.
type Member struct {
	Name string
	Size int64
	Mode int64
	// Offset is the byte offset, from the start of the archive, at which
	// this member's payload begins (i.e. immediately after its 60-byte
	// header).
	Offset int64
}

// countingReader wraps an io.Reader and records how many bytes have been
// read through it. ar.Reader does not expose its own position, so this is
// the only way to recover Member.Offset without reimplementing the ar(5)
// header parser from scratch.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Reader reads a split-format ar archive member by member.
type Reader struct {
	cr *countingReader
	ar *ar.Reader
}

// NewReader wraps r as an ar(5) archive reader.
func NewReader(r io.Reader) *Reader {
	cr := &countingReader{r: bufio.NewReader(r)}
	return &Reader{cr: cr, ar: ar.NewReader(cr)}
}

// Next advances to the next member and returns its header. It returns
// io.EOF when the archive is exhausted.
func (r *Reader) Next() (*Member, error) {
	h, err := r.ar.Next()
	if err != nil {
		return nil, err
	}
	name := normalizeMemberName(h.Name)
	if len(h.Name) > 16 {
		return nil, fmt.Errorf("ar member name %q exceeds the split format's 16-byte limit (GNU long names are not used by split parts)", h.Name)
	}
	return &Member{
		Name:   name,
		Size:   h.Size,
		Mode:   h.Mode,
		Offset: r.cr.n,
	}, nil
}

// Read reads the current member's payload.
func (r *Reader) Read(p []byte) (int, error) {
	return r.ar.Read(p)
}

// normalizeMemberName strips the ar(5) trailing '/' terminator and pads
// spaces dpkg and GNU ar both use to fill the fixed 16-byte name field.
func normalizeMemberName(name string) string {
	for len(name) > 0 && (name[len(name)-1] == ' ' || name[len(name)-1] == '/') {
		name = name[:len(name)-1]
	}
	return name
}

// Writer writes a split-format ar archive.
type Writer struct {
	cw *countingWriterT
	ar *ar.Writer
}

type countingWriterT struct {
	w io.Writer
	n int64
}

func (c *countingWriterT) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewWriter wraps w as an ar(5) archive writer and immediately writes the
// global "!<arch>\n" magic.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := &countingWriterT{w: w}
	aw := ar.NewWriter(cw)
	if err := aw.WriteGlobalHeader(); err != nil {
		return nil, fmt.Errorf("writing ar global header: %w", err)
	}
	return &Writer{cw: cw, ar: aw}, nil
}

// WriteMember writes one named member with the given payload and returns
// the byte offset (from archive start) at which the payload begins.
func (w *Writer) WriteMember(name string, body []byte, mtime time.Time) (int64, error) {
	if len(name) > 16 {
		return 0, fmt.Errorf("ar member name %q exceeds the split format's 16-byte limit", name)
	}
	h := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0100644,
		ModTime: mtime,
	}
	if err := w.ar.WriteHeader(h); err != nil {
		return 0, fmt.Errorf("writing ar header for %s: %w", name, err)
	}
	offset := w.cw.n
	if _, err := w.ar.Write(body); err != nil {
		return 0, fmt.Errorf("writing ar member %s: %w", name, err)
	}
	return offset, nil
}

// Offset reports the total number of bytes written to the archive so far.
func (w *Writer) Offset() int64 { return w.cw.n }
