package commands

import (
	"context"
	"fmt"
	"os"
)

// StatusCmd implements the 'status' command. It never builds and never
// notifies modules.
type StatusCmd struct {
	Output string `short:"o" help:"Output folder (overrides output_folder)"`
}

func (c *StatusCmd) Run(g *Global, root *CLI) error {
	b, err := newBuilder(root, g, buildOptions{output: c.Output})
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	stale, err := b.Stale(context.Background())
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "up to date")
		return nil
	}
	for _, src := range stale {
		_, _ = fmt.Fprintln(os.Stdout, src)
	}
	return nil
}
