// Command assessctl inspects the tool catalog offline: list tools, validate
// declarations, and score or preview a prompt for an answers file.
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
