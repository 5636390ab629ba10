// Package split implements the multipart .deb split/join format: a .deb (or
// any file, historically) too large for some transport is cut into
// numbered parts, each itself a small ar(5) archive holding a textual
// "debian-split" header member and a "data.N" payload member (spec.md
// §4.6).
package split

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dpkgcore/dpkg-go/internal/arfmt"
)

// PartMagic is the ar(5) member name identifying a split-format header.
const PartMagic = "debian-split"

// FormatVersion is the header format version this package reads and
// writes. Only major version 2 is understood; a differing major version in
// an existing part is a hard error (dpkg-split refuses to guess at a
// format it predates or postdates).
const FormatVersion = "2.1"

// HeaderAllowance is the number of bytes reserved, out of each part's
// maximum size, for the ar(5) framing and the debian-split header member
// (dpkg-split/dpkg-split.h's HEADERALLOWANCE).
const HeaderAllowance = 1024

// DefaultMaxPartSize is the part size used when the caller does not
// specify one (dpkg-split/dpkg-split.h's SPLITPARTDEFMAX).
const DefaultMaxPartSize = 450 * 1024

// PartInfo is the decoded header of one split part, plus positional
// information about where its payload lives within the part file.
type PartInfo struct {
	Filename string

	Package string
	Version string
	// Arch is empty for parts produced before dpkg 1.16.1, which predates
	// the architecture line.
	Arch  string
	MD5   string
	Major int
	Minor int

	OrgLength  int64
	MaxPartLen int64
	ThisPartN  int
	MaxPartN   int

	ThisPartOffset int64
	ThisPartLen    int64

	// HeaderLen is the number of bytes preceding the data member's payload
	// within the part file: the ar(5) global header, the debian-split
	// member's header+body, and the data member's own header.
	HeaderLen int64
	FileSize  int64
}

// ReadPartInfo reads and validates a part file's header. It returns
// (nil, nil) if r does not begin with a debian-split member at all (not a
// part file), and a non-nil error if it looks like one but is corrupt.
func ReadPartInfo(r io.Reader, filename string) (*PartInfo, error) {
	ar := arfmt.NewReader(r)

	m1, err := ar.Next()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("split: %s: reading first member: %w", filename, err)
	}
	if m1.Name != PartMagic {
		return nil, nil
	}
	body, err := io.ReadAll(ar)
	if err != nil {
		return nil, fmt.Errorf("split: %s: reading header member: %w", filename, err)
	}

	pi := &PartInfo{Filename: filename}
	if err := pi.parseHeader(string(body)); err != nil {
		return nil, fmt.Errorf("split: %s is corrupt - %w", filename, err)
	}

	m2, err := ar.Next()
	if err != nil {
		return nil, fmt.Errorf("split: %s: reading data member: %w", filename, err)
	}
	if !strings.HasPrefix(m2.Name, "data") {
		return nil, fmt.Errorf("split: %s is corrupt - second member is not a data member", filename)
	}

	pi.ThisPartLen = m2.Size
	pi.ThisPartOffset = int64(pi.ThisPartN-1) * pi.MaxPartLen
	pi.HeaderLen = m2.Offset
	pi.FileSize = m2.Offset + m2.Size

	wantParts := int((pi.OrgLength + pi.MaxPartLen - 1) / pi.MaxPartLen)
	if pi.MaxPartN != wantParts {
		return nil, fmt.Errorf("split: %s is corrupt - wrong number of parts for quoted sizes", filename)
	}
	wantLen := pi.MaxPartLen
	if pi.ThisPartN == pi.MaxPartN {
		wantLen = pi.OrgLength - pi.ThisPartOffset
	}
	if pi.ThisPartLen != wantLen {
		return nil, fmt.Errorf("split: %s is corrupt - size is wrong for quoted part number", filename)
	}

	return pi, nil
}

func (pi *PartInfo) parseHeader(body string) error {
	sc := bufio.NewScanner(strings.NewReader(body))
	next := func(what string) (string, error) {
		if !sc.Scan() {
			return "", fmt.Errorf("%s missing", what)
		}
		return sc.Text(), nil
	}

	fv, err := next("format version number")
	if err != nil {
		return err
	}
	major, minor, err := parseFormatVersion(fv)
	if err != nil {
		return fmt.Errorf("invalid format version: %w", err)
	}
	if major != 2 {
		return fmt.Errorf("format version %d.%d is not supported, need a newer reader", major, minor)
	}
	pi.Major, pi.Minor = major, minor

	if pi.Package, err = next("package name"); err != nil {
		return err
	}
	if pi.Version, err = next("package version number"); err != nil {
		return err
	}
	if pi.MD5, err = next("package file MD5 checksum"); err != nil {
		return err
	}
	if len(pi.MD5) != 32 || strings.Trim(pi.MD5, "0123456789abcdef") != "" {
		return fmt.Errorf("bad MD5 checksum %q", pi.MD5)
	}

	orgLenStr, err := next("archive total size")
	if err != nil {
		return err
	}
	pi.OrgLength, err = strconv.ParseInt(orgLenStr, 10, 64)
	if err != nil {
		return fmt.Errorf("bad archive total size %q", orgLenStr)
	}

	maxPartLenStr, err := next("archive part size")
	if err != nil {
		return err
	}
	pi.MaxPartLen, err = strconv.ParseInt(maxPartLenStr, 10, 64)
	if err != nil {
		return fmt.Errorf("bad archive part size %q", maxPartLenStr)
	}

	partNums, err := next("archive part numbers")
	if err != nil {
		return err
	}
	idx := strings.IndexByte(partNums, '/')
	if idx < 0 {
		return fmt.Errorf("no slash between archive part numbers")
	}
	thisN, err := strconv.Atoi(partNums[:idx])
	if err != nil {
		return fmt.Errorf("bad archive part number %q", partNums[:idx])
	}
	maxN, err := strconv.Atoi(partNums[idx+1:])
	if err != nil || maxN <= 0 {
		return fmt.Errorf("bad number of archive parts %q", partNums[idx+1:])
	}
	if thisN <= 0 || thisN > maxN {
		return fmt.Errorf("bad archive part number %d", thisN)
	}
	pi.ThisPartN, pi.MaxPartN = thisN, maxN

	if sc.Scan() {
		pi.Arch = sc.Text()
	}
	return nil
}

func parseFormatVersion(s string) (major, minor int, err error) {
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0, 0, fmt.Errorf("missing '.' in %q", s)
	}
	major, err = strconv.Atoi(s[:idx])
	if err != nil {
		return 0, 0, err
	}
	minor, err = strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

// HeaderText renders the debian-split member body for a part.
func HeaderText(pkg, version, md5sum string, orgLength, maxPartLen int64, thisPartN, maxPartN int, arch string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n%d\n%d\n%d/%d\n", FormatVersion, pkg, version, md5sum, orgLength, maxPartLen, thisPartN, maxPartN)
	if arch != "" {
		fmt.Fprintf(&b, "%s\n", arch)
	}
	return b.String()
}
