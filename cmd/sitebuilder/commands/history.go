package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Journal string `help:"Read this sqlite database (overrides the journal key)"`
	Limit   int    `short:"n" help:"Number of passes to show" default:"20"`
	Build   string `arg:"" optional:"" help:"Show the files written by this build ID"`
}

func (c *HistoryCmd) Run(_ *Global, root *CLI) error {
	j, err := requireJournal(root, c.Journal)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if c.Build != "" {
		files, err := j.Files(ctx, c.Build)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(tw, "MARKER\tSOURCE\tDESTINATION\tPROGRAM\tFINGERPRINT")
		for _, f := range files {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Marker, f.Source, f.Destination, f.Program, f.Fingerprint)
		}
		return nil
	}

	passes, err := j.History(ctx, c.Limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tSTATUS\tBUILT\tERROR")
	for _, p := range passes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.BuildID, p.StartedAt.Local().Format(time.DateTime), p.Status, p.Built, p.Error)
	}
	return nil
}
