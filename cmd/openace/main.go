// Command openace indexes a codebase into a local symbol graph, full-text
// index, and vector index, and serves multi-signal search over them.
package main

import (
	"fmt"
	"os"

	"github.com/Kosthi/openace/cmd/openace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
