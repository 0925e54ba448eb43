// Command morphc compiles morph formula assets into rig drivers.
package main

import (
	"os"

	"github.com/roach88/morphc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
