package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
)

// RoutesCmd implements the 'routes' command.
type RoutesCmd struct{}

func (r *RoutesCmd) Run(g *Global, root *CLI) error {
	b, err := newBuilder(root, g, buildOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tURL")
	for _, rule := range b.Router().Rules() {
		_, _ = fmt.Fprintf(tw, "%s\t%s%s\n", rule.Name, b.Router().Prefix(), rule.Pattern)
	}
	return tw.Flush()
}
