// Command start-stop-daemon is out of scope for this module (spec.md §1
// Non-goals names "start-stop-daemon's ... control-flow glue" as an
// external collaborator with a documented interface only). This stub
// exists so the module's cmd/ tree enumerates every binary the suite
// ships, without reimplementing process supervision, which has no
// corresponding [MODULE] in the specification this repository implements.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "start-stop-daemon: not implemented; process supervision is out of scope for this module")
	os.Exit(2)
}
