// Command cmacro extracts C macros from headers and expands them in sources.
package main

import (
	"os"

	"github.com/fwessels/cmacro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
