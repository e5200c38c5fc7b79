// Command termscp is the executable entry point.
package main

import (
	"os"

	"github.com/veeso-termscp/termscp-core/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
