package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/moodlog/emotion-diary/internal/journal"
)

// journalOpener builds the journal for one command run
type journalOpener func(ctx context.Context) (*journal.Service, io.Closer, error)

type cli struct {
	open journalOpener
}

func newRootCmd(open journalOpener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "diaryctl",
		Short: "Emotion diary from the command line",
		Long: `diaryctl reads and writes the emotion diary directly against the configured
storage backend. Configuration comes from the environment, a .env file or the YAML
file named by DIARY_CONFIG, exactly like the server.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		c.listCmd(),
		c.showCmd(),
		c.writeCmd(),
		c.deleteCmd(),
		c.statsCmd(),
		c.trendsCmd(),
		c.adviceCmd(),
		c.exportCmd(),
		c.reportCmd(),
		c.checkCmd(),
	)
	return root
}

// withJournal opens the journal around a command body
func (c *cli) withJournal(fn func(cmd *cobra.Command, args []string, svc *journal.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, closer, err := c.open(cmd.Context())
		if err != nil {
			return err
		}
		defer closer.Close()
		return fn(cmd, args, svc)
	}
}
