// Command btreedb-repl is the thin, illustrative demonstrator spec.md §6
// calls for: a line-oriented shell over one database file, plus backup,
// restore, and dump subcommands for scripting. None of this package is
// part of the storage engine's correctness surface.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
