// Command update-alternatives manages the alternatives system's link
// groups: registering candidates, picking a winner automatically or by
// admin override, and tearing groups down (spec.md §4.8, §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dpkgcore/dpkg-go/internal/alternatives"
)

func main() {
	var (
		admindir string
		altdir   string
		all      bool
		force    bool
	)

	fs := flag.NewFlagSet("update-alternatives", flag.ContinueOnError)
	fs.StringVar(&admindir, "admindir", "/var/lib/dpkg/alternatives", "administrative directory")
	fs.StringVar(&altdir, "altdir", "/var/lib/alternatives", "alternatives link directory")
	fs.BoolVar(&all, "all", false, "call --config for every alternative")
	fs.BoolVar(&force, "force", false, "allow replacing files that aren't symlinks")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	action := os.Args[1]

	var actionArgs []string
	switch action {
	case "--install":
		if len(os.Args) < 6 {
			fmt.Fprintln(os.Stderr, "update-alternatives: --install needs <link> <name> <path> <priority> [--slave <link> <name> <path>]...")
			os.Exit(2)
		}
		if err := fs.Parse(filterGlobalFlags(os.Args[2:], &admindir, &altdir, &force)); err != nil {
			os.Exit(2)
		}
		actionArgs = fs.Args()
	default:
		if err := fs.Parse(os.Args[2:]); err != nil {
			os.Exit(2)
		}
		actionArgs = fs.Args()
	}

	db := alternatives.New(admindir, altdir)
	db.Force = force

	var err error
	switch action {
	case "--install":
		err = runInstall(db, actionArgs)
	case "--set":
		err = runSet(db, actionArgs)
	case "--auto":
		err = runAuto(db, actionArgs)
	case "--remove":
		err = runRemove(db, actionArgs)
	case "--remove-all":
		err = runRemoveAll(db, actionArgs)
	case "--display":
		err = runDisplay(db, actionArgs)
	case "--query":
		err = runQuery(db, actionArgs)
	case "--list":
		err = runList(db, actionArgs)
	case "--config":
		err = runConfig(db, actionArgs, all)
	case "--get-selections":
		err = runGetSelections(db)
	case "--set-selections":
		err = runSetSelections(db)
	case "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "update-alternatives: unknown action %q\n", action)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "update-alternatives: error: %v\n", err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  update-alternatives --install <link> <name> <path> <priority> [--slave <link> <name> <path>]...
  update-alternatives --set <name> <path>
  update-alternatives --auto <name>
  update-alternatives --remove <name> <path>
  update-alternatives --remove-all <name>
  update-alternatives --display <name>
  update-alternatives --query <name>
  update-alternatives --list <name>
  update-alternatives --config <name>
  update-alternatives --get-selections
  update-alternatives --set-selections`)
}

// filterGlobalFlags is a shim so --install, whose argument shape
// (<link> <name> <path> <priority> [--slave ...]...) is not representable
// as ordinary flag.FlagSet flags, still accepts --admindir/--altdir/--force
// appearing before or after its positional arguments. --slave triples are
// parsed separately in runInstall from fs.Args().
func filterGlobalFlags(args []string, admindir, altdir *string, force *bool) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--admindir":
			if i+1 < len(args) {
				*admindir = args[i+1]
				i++
			}
		case "--altdir":
			if i+1 < len(args) {
				*altdir = args[i+1]
				i++
			}
		case "--force":
			*force = true
		default:
			out = append(out, args[i])
		}
	}
	return out
}

func runInstall(db *alternatives.Db, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("--install needs <link> <name> <path> <priority>")
	}
	link, name, path, prioStr := args[0], args[1], args[2], args[3]
	priority, err := strconv.Atoi(prioStr)
	if err != nil {
		return fmt.Errorf("invalid priority %q: %w", prioStr, err)
	}

	var slaves []alternatives.SlaveSpec
	rest := args[4:]
	for len(rest) > 0 {
		if rest[0] != "--slave" {
			return fmt.Errorf("unexpected argument %q after --install's required arguments", rest[0])
		}
		if len(rest) < 4 {
			return fmt.Errorf("--slave needs <link> <name> <path>")
		}
		slaves = append(slaves, alternatives.SlaveSpec{Link: rest[1], Name: rest[2], File: rest[3]})
		rest = rest[4:]
	}

	g, err := db.Install(name, link, path, priority, slaves)
	if err != nil {
		return err
	}
	fmt.Printf("update-alternatives: using %s to provide %s (%s) in %s mode\n", path, link, name, g.Status.String())
	return nil
}

func runSet(db *alternatives.Db, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("--set needs <name> <path>")
	}
	return db.Set(args[0], args[1])
}

func runAuto(db *alternatives.Db, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--auto needs <name>")
	}
	return db.Auto(args[0])
}

func runRemove(db *alternatives.Db, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("--remove needs <name> <path>")
	}
	return db.RemoveChoice(args[0], args[1])
}

func runRemoveAll(db *alternatives.Db, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--remove-all needs <name>")
	}
	return db.RemoveAll(args[0])
}

func runDisplay(db *alternatives.Db, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--display needs <name>")
	}
	d, err := db.Query(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s - %s mode\n", d.Name, d.Status.String())
	fmt.Printf("  link best version is %s\n", d.Best)
	if d.Current != "" {
		fmt.Printf("  link currently points to %s\n", d.Current)
	} else {
		fmt.Printf("  link currently absent\n")
	}
	fmt.Printf("  link %s is %s\n", d.Link, d.Status.Describe())
	for _, sl := range d.Slaves {
		fmt.Printf("  slave %s: %s\n", sl.Name, sl.Link)
	}
	for _, c := range d.Choices {
		fmt.Printf("%s - priority %d\n", c.Path, c.Priority)
		for name, file := range c.Slaves {
			fmt.Printf("  slave %s: %s\n", name, file)
		}
	}
	return nil
}

func runQuery(db *alternatives.Db, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--query needs <name>")
	}
	d, err := db.Query(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Name: %s\n", d.Name)
	fmt.Printf("Link: %s\n", d.Link)
	fmt.Printf("Status: %s\n", d.Status.String())
	fmt.Printf("Best: %s\n", d.Best)
	if d.Current != "" {
		fmt.Printf("Value: %s\n", d.Current)
	} else {
		fmt.Printf("Value: none\n")
	}
	for _, c := range d.Choices {
		fmt.Println()
		fmt.Printf("Alternative: %s\n", c.Path)
		fmt.Printf("Priority: %d\n", c.Priority)
	}
	return nil
}

func runList(db *alternatives.Db, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--list needs <name>")
	}
	paths, err := db.List(args[0])
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// runConfig prompts the administrator to pick a choice interactively.
// Rendering an interactive prompt to a terminal is outside this database
// layer's concern; this prints the same listing --display does and
// leaves the actual prompt/selection loop as the caller's responsibility,
// same division of labor as update-alternatives.c's set_choice vs the
// curses-free readline prompt in do_config.
func runConfig(db *alternatives.Db, args []string, all bool) error {
	if all {
		names, err := db.ListNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := runDisplay(db, []string{name}); err != nil {
				return err
			}
		}
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("--config needs <name>")
	}
	return runDisplay(db, args)
}

func runGetSelections(db *alternatives.Db) error {
	sels, err := db.GetSelections()
	if err != nil {
		return err
	}
	for _, s := range sels {
		current := s.Current
		if current == "" {
			current = "(none)"
		}
		fmt.Printf("%s\t%s\t%s\n", s.Name, s.Status.String(), current)
	}
	return nil
}

func runSetSelections(db *alternatives.Db) error {
	results, err := db.SetSelections(os.Stdin)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Message != "" {
			fmt.Fprintf(os.Stderr, "update-alternatives: %s\n", r.Message)
		}
	}
	return nil
}
