// Command dpkg-divert is out of scope for this module (spec.md §1 Non-goals
// names "dpkg-divert's ... control-flow glue" as an external collaborator
// with a documented interface only). This stub exists so the module's
// cmd/ tree enumerates every binary the suite ships, without reimplementing
// diversion tracking, which has no corresponding [MODULE] in the
// specification this repository implements.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "dpkg-divert: not implemented; file diversions are out of scope for this module")
	os.Exit(2)
}
