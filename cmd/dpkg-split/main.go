// Command dpkg-split splits a large .deb into numbered parts, or rejoins
// and manages parts previously produced this way (spec.md §4.6, §4.7).
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dpkgcore/dpkg-go/internal/partqueue"
	"github.com/dpkgcore/dpkg-go/internal/split"
)

func main() {
	var (
		depotDir string
		partSize int64
		output   string
		npquiet  bool
		msdos    bool
	)

	fs := flag.NewFlagSet("dpkg-split", flag.ExitOnError)
	fs.StringVar(&depotDir, "depotdir", "/var/lib/dpkg/parts", "depot directory for --auto/--listq/--discard")
	fs.Int64Var(&partSize, "S", split.DefaultMaxPartSize/1024, "maximum part size, in kibibytes")
	fs.Int64Var(&partSize, "partsize", split.DefaultMaxPartSize/1024, "maximum part size, in kibibytes")
	fs.StringVar(&output, "o", "", "output file name")
	fs.StringVar(&output, "output", "", "output file name")
	fs.BoolVar(&npquiet, "Q", false, "don't warn on being given junk in --auto")
	fs.BoolVar(&npquiet, "npquiet", false, "don't warn on being given junk in --auto")
	fs.BoolVar(&msdos, "msdos", false, "accepted for compatibility; prints a warning, part names are not shortened")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	action, rest := os.Args[1], os.Args[2:]
	if err := fs.Parse(rest); err != nil {
		os.Exit(2)
	}
	args := fs.Args()

	var err error
	switch action {
	case "-s", "--split":
		err = runSplit(args, output, partSize*1024, msdos)
	case "-j", "--join":
		err = runJoin(args, output)
	case "-I", "--info":
		err = runInfo(args)
	case "-a", "--auto":
		err = runAuto(args, depotDir, output, npquiet)
	case "-l", "--listq":
		err = runListq(depotDir)
	case "-d", "--discard":
		err = runDiscard(args, depotDir)
	case "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "dpkg-split: unknown action %q\n", action)
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, partqueue.ErrNotAPart) {
			if !npquiet {
				fmt.Fprintf(os.Stderr, "dpkg-split: error: %v\n", err)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "dpkg-split: error: %v\n", err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  dpkg-split -s|--split <file> [prefix]
  dpkg-split -j|--join <part>...
  dpkg-split -I|--info <part>...
  dpkg-split -a|--auto -o <complete> <part>
  dpkg-split -l|--listq
  dpkg-split -d|--discard [<package>...]`)
}

func runSplit(args []string, output string, maxPartSize int64, msdos bool) error {
	if len(args) < 1 {
		return fmt.Errorf("--split needs a source file")
	}
	src := args[0]
	prefix := output
	if prefix == "" && len(args) > 1 {
		prefix = args[1]
	}
	if prefix == "" {
		prefix = split.DefaultSplitPrefix(src)
	}
	if msdos && len(prefix) > 0 {
		log.Println("dpkg-split: warning: --msdos filename truncation is not implemented, using the full prefix")
	}

	written, err := split.Split(src, prefix, maxPartSize, nil, time.Now())
	if err != nil {
		return err
	}
	for _, name := range written {
		fmt.Println(name)
	}
	return nil
}

func runJoin(args []string, output string) error {
	if len(args) == 0 {
		return fmt.Errorf("--join needs at least one part file")
	}
	parts, ref, err := readParts(args)
	if err != nil {
		return err
	}
	if output == "" {
		output = split.DefaultOutputName(ref)
	}
	if err := split.Reassemble(parts, output); err != nil {
		return err
	}
	fmt.Printf("New package %s.\n", output)
	return nil
}

func readParts(files []string) ([]*split.PartInfo, *split.PartInfo, error) {
	var ref *split.PartInfo
	var partlist []*split.PartInfo
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", name, err)
		}
		pi, err := split.ReadPartInfo(f, name)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		if pi == nil {
			return nil, nil, fmt.Errorf("%s is not a split archive part", name)
		}
		if ref == nil {
			ref = pi
			partlist = make([]*split.PartInfo, ref.MaxPartN)
		}
		if err := split.AddToPartList(partlist, pi, ref); err != nil {
			return nil, nil, err
		}
	}
	for i, p := range partlist {
		if p == nil {
			return nil, nil, fmt.Errorf("part %d is missing", i+1)
		}
	}
	return partlist, ref, nil
}

func runInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("--info needs at least one part file")
	}
	for i, name := range args {
		if i > 0 {
			fmt.Println()
		}
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		pi, err := split.ReadPartInfo(f, name)
		f.Close()
		if err != nil {
			return err
		}
		if pi == nil {
			fmt.Printf("%s:\n  not a part of a multipart archive.\n", name)
			continue
		}
		fmt.Printf("%s:\n", name)
		fmt.Printf("    Part format version:            %d.%d\n", pi.Major, pi.Minor)
		fmt.Printf("    Part of package:                %s\n", pi.Package)
		fmt.Printf("    ... version:                     %s\n", pi.Version)
		if pi.Arch != "" {
			fmt.Printf("    ... architecture:                %s\n", pi.Arch)
		}
		fmt.Printf("    ... MD5 checksum:                %s\n", pi.MD5)
		fmt.Printf("    ... length:                      %d bytes\n", pi.OrgLength)
		fmt.Printf("    ... split every:                 %d bytes\n", pi.MaxPartLen)
		fmt.Printf("    Part number:                     %d/%d\n", pi.ThisPartN, pi.MaxPartN)
		fmt.Printf("    Part length:                     %d bytes\n", pi.ThisPartLen)
		fmt.Printf("    Part offset:                     %d bytes\n", pi.ThisPartOffset)
	}
	return nil
}

func runAuto(args []string, depotDir, output string, npquiet bool) error {
	if len(args) != 1 {
		return fmt.Errorf("--auto needs exactly one part file")
	}
	if output == "" {
		return fmt.Errorf("--auto requires --output")
	}
	if err := os.MkdirAll(depotDir, 0755); err != nil {
		return fmt.Errorf("creating depot directory: %w", err)
	}
	res, err := partqueue.Auto(depotDir, args[0], output)
	if err != nil {
		return err
	}
	if res.Complete {
		fmt.Printf("New package %s.\n", res.OutputFile)
		return nil
	}
	if !npquiet {
		missing := make([]string, len(res.Missing))
		for i, n := range res.Missing {
			missing[i] = strconv.Itoa(n)
		}
		fmt.Printf("Putting package %s together, not enough files yet.\n", args[0])
		fmt.Printf("(still need %s)\n", strings.Join(missing, ", "))
	}
	return nil
}

func runListq(depotDir string) error {
	junk, pending, err := partqueue.List(depotDir)
	if err != nil {
		return err
	}
	if len(junk) == 0 && len(pending) == 0 {
		fmt.Println("Junk files left around in the depot directory:")
		fmt.Println("Packages not yet reassembled:")
		return nil
	}
	if len(junk) > 0 {
		fmt.Println("Junk files left around in the depot directory:")
		for _, j := range junk {
			fmt.Printf("  %s (%d bytes)\n", j.Filename, j.Size)
		}
	}
	if len(pending) > 0 {
		fmt.Println("Packages not yet reassembled:")
		for _, p := range pending {
			fmt.Printf("  Package %s: part(s) %v present, %d bytes total\n", p.Package, p.PresentParts, p.PresentBytes)
		}
	}
	return nil
}

func runDiscard(packages []string, depotDir string) error {
	deleted, err := partqueue.Discard(depotDir, packages)
	if err != nil {
		return err
	}
	for _, name := range deleted {
		fmt.Printf("Deleted %s.\n", name)
	}
	return nil
}
