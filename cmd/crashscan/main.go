// Command crashscan analyzes Bethesda game crash logs.
package main

import (
	"fmt"
	"os"
)

// Set by build flags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
