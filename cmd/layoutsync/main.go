// Command layoutsync runs layout editing scenarios and inspects stored
// operation history.
package main

import (
	"fmt"
	"os"

	"github.com/RafaelSullivam/editor-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
