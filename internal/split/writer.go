package split

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dpkgcore/dpkg-go/internal/arfmt"
)

// Split cuts srcPath into numbered parts of at most maxPartSize bytes each
// (including header overhead), named "<prefix>.<N>of<M>.deb", and returns
// the filenames written in order (mksplit in dpkg-split/split.c).
func Split(srcPath, prefix string, maxPartSize int64, extract ControlExtractor, mtime time.Time) ([]string, error) {
	if extract == nil {
		extract = DefaultControlExtractor
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("split: opening source file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("split: statting source file: %w", err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("split: source file %q is not a plain file", srcPath)
	}

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, fmt.Errorf("split: hashing source file: %w", err)
	}
	md5sum := fmt.Sprintf("%x", hash.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("split: rewinding source file: %w", err)
	}

	ctrl, err := extract(srcPath)
	if err != nil {
		return nil, err
	}

	partSize := maxPartSize - HeaderAllowance
	if partSize <= 0 {
		return nil, fmt.Errorf("split: part size %d is too small to hold the header overhead", maxPartSize)
	}

	size := st.Size()
	lastPartSize := size % partSize
	if lastPartSize == 0 {
		lastPartSize = partSize
	}
	nparts := int((size + partSize - 1) / partSize)
	if nparts == 0 {
		nparts = 1
	}

	var written []string
	for curPart := 1; curPart <= nparts; curPart++ {
		curPartSize := partSize
		if curPart == nparts {
			curPartSize = lastPartSize
		}
		if curPartSize > maxPartSize {
			return nil, fmt.Errorf("split: header is too long, making part too long; the package name or version is extraordinarily long")
		}

		dstName := fmt.Sprintf("%s.%dof%d.deb", prefix, curPart, nparts)
		if err := writePart(dstName, f, curPartSize, ctrl, md5sum, size, partSize, curPart, nparts, mtime); err != nil {
			return nil, err
		}
		written = append(written, dstName)
	}

	return written, nil
}

func writePart(dstName string, src io.Reader, curPartSize int64, ctrl ControlInfo, md5sum string, orgLength, partSize int64, curPart, nparts int, mtime time.Time) error {
	dst, err := os.OpenFile(dstName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("split: creating %s: %w", dstName, err)
	}
	defer dst.Close()

	aw, err := arfmt.NewWriter(dst)
	if err != nil {
		return fmt.Errorf("split: %s: %w", dstName, err)
	}

	header := HeaderText(ctrl.Package, ctrl.Version, md5sum, orgLength, partSize, curPart, nparts, ctrl.Arch)
	if _, err := aw.WriteMember(PartMagic, []byte(header), mtime); err != nil {
		return fmt.Errorf("split: %s: writing header member: %w", dstName, err)
	}

	body := make([]byte, curPartSize)
	if _, err := io.ReadFull(src, body); err != nil {
		return fmt.Errorf("split: %s: reading source data: %w", dstName, err)
	}
	dataName := fmt.Sprintf("data.%d", curPart)
	if _, err := aw.WriteMember(dataName, body, mtime); err != nil {
		return fmt.Errorf("split: %s: writing data member: %w", dstName, err)
	}

	return dst.Sync()
}

// Reassemble joins the parts in partlist (already ordered by ThisPartN,
// one entry per part from 1..MaxPartN with no gaps) back into outputFile
// (join.c's reassemble).
func Reassemble(partlist []*PartInfo, outputFile string) error {
	if len(partlist) == 0 {
		return fmt.Errorf("split: cannot reassemble an empty part list")
	}
	out, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("split: creating output file %s: %w", outputFile, err)
	}
	defer out.Close()

	for _, pi := range partlist {
		if err := copyPartPayload(out, pi); err != nil {
			return err
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("split: syncing %s: %w", outputFile, err)
	}
	return nil
}

func copyPartPayload(out io.Writer, pi *PartInfo) error {
	in, err := os.Open(pi.Filename)
	if err != nil {
		return fmt.Errorf("split: reopening part file %s: %w", pi.Filename, err)
	}
	defer in.Close()

	if _, err := in.Seek(pi.HeaderLen, io.SeekStart); err != nil {
		return fmt.Errorf("split: seeking into part file %s: %w", pi.Filename, err)
	}
	if _, err := io.CopyN(out, in, pi.ThisPartLen); err != nil {
		return fmt.Errorf("split: copying payload from %s: %w", pi.Filename, err)
	}
	return nil
}

// AddToPartList inserts pi into partlist (sized MaxPartN, indexed
// ThisPartN-1), verifying it belongs to the same split as ref and that no
// other part already occupies that slot (join.c's addtopartlist).
func AddToPartList(partlist []*PartInfo, pi, ref *PartInfo) error {
	if pi.Package != ref.Package || pi.Version != ref.Version || pi.MD5 != ref.MD5 ||
		pi.OrgLength != ref.OrgLength || pi.MaxPartN != ref.MaxPartN || pi.MaxPartLen != ref.MaxPartLen {
		return fmt.Errorf("split: %s and %s are not parts of the same file", pi.Filename, ref.Filename)
	}
	i := pi.ThisPartN - 1
	if i < 0 || i >= len(partlist) {
		return fmt.Errorf("split: part number %d out of range for %d parts", pi.ThisPartN, len(partlist))
	}
	if partlist[i] != nil {
		return fmt.Errorf("split: there are several versions of part %d - at least %s and %s", pi.ThisPartN, partlist[i].Filename, pi.Filename)
	}
	partlist[i] = pi
	return nil
}

// DefaultOutputName derives the "<package>-<version>.deb" join output name
// used when the caller does not specify one explicitly.
func DefaultOutputName(ref *PartInfo) string {
	return fmt.Sprintf("%s-%s.deb", ref.Package, ref.Version)
}

// DefaultSplitPrefix strips a trailing ".deb" from srcPath to derive the
// default split output prefix, matching do_split's behavior when no
// destination prefix is given.
func DefaultSplitPrefix(srcPath string) string {
	const ext = ".deb"
	if len(srcPath) > len(ext) && srcPath[len(srcPath)-len(ext):] == ext {
		return srcPath[:len(srcPath)-len(ext)]
	}
	return srcPath
}
