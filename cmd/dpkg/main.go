// Command dpkg is a thin front end onto this module's package database
// subsystems. Only the version-comparison surface (--compare-versions) is
// implemented; read-oriented queries and package installation/removal are
// not. Installation/removal are
// out of scope (spec.md §1 Non-goals).
package main

import (
	"fmt"
	"os"

	"github.com/dpkgcore/dpkg-go/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--compare-versions":
		os.Exit(runCompareVersions(os.Args[2:]))
	case "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "dpkg: unknown action %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: dpkg --compare-versions <v1> <op> <v2>")
}

// runCompareVersions implements --compare-versions' exit-code contract
// (lib/vercmp.c): 0 if the relation holds, 1 if it does not, 2 on a usage
// or parse error.
func runCompareVersions(args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "dpkg: --compare-versions takes exactly three arguments: <v1> <op> <v2>")
		return 2
	}

	v1, err := version.ParseLax(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dpkg: %v\n", err)
		return 2
	}
	v2, err := version.ParseLax(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dpkg: %v\n", err)
		return 2
	}

	holds, err := evalRelation(args[1], v1, v2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dpkg: %v\n", err)
		return 2
	}
	if holds {
		return 0
	}
	return 1
}

// evalRelation accepts both the symbolic operators (<<, <=, =, >=, >>) and
// their word forms (lt, le, eq, ne, ge, gt), matching dpkg's historical
// acceptance of either (lib/vercmp.c's relation table). "ne" has no
// symbolic counterpart in dpkg's table and no corresponding
// version.Relation constant, so it is evaluated directly against Compare.
func evalRelation(op string, v1, v2 version.Version) (bool, error) {
	if op == "ne" {
		return version.Compare(v1, v2) != 0, nil
	}
	var rel version.Relation
	switch op {
	case "lt", "<<", "<":
		rel = version.RelLt
	case "le", "<=":
		rel = version.RelLe
	case "eq", "=":
		rel = version.RelEq
	case "ge", ">=":
		rel = version.RelGe
	case "gt", ">>", ">":
		rel = version.RelGt
	default:
		return false, fmt.Errorf("unknown relational operator %q", op)
	}
	return version.Satisfies(v1, rel, v2), nil
}
