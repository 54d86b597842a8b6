// Command viewtree replays tree edit scripts through the view tree engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/go-drift/viewtree/cmd/viewtree/cmd"
)

func main() {
	if err := fang.Execute(context.Background(), cmd.NewRootCommand(),
		fang.WithVersion(cmd.Version),
		fang.WithCommit(cmd.Commit),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}
