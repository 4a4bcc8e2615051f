package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/score"
	"github.com/moodlog/emotion-diary/internal/session"
)

func (c *cli) listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent entries",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			entries := svc.Recent(cmd.Context())
			if limit > 0 {
				entries = diary.Last(entries, limit)
			}
			printList(cmd.OutOrStdout(), entries)
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the last N entries of the recent window")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show DATE",
		Short: "Show the entry of one day",
		Args:  cobra.ExactArgs(1),
		RunE: c.withJournal(func(cmd *cobra.Command, args []string, svc *journal.Service) error {
			entry, ok, err := svc.Entry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no entry for %s", args[0])
			}
			printEntry(cmd.OutOrStdout(), entry)
			return nil
		}),
	}
}

func (c *cli) writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write DATE [TEXT...]",
		Short: "Write or replace the entry of one day",
		Long: `Analyzes the text, scores it and stores it as the entry of DATE, replacing any
previous entry of that day. Without TEXT (or with "-") the text is read from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.withJournal(func(cmd *cobra.Command, args []string, svc *journal.Service) error {
			text := strings.Join(args[1:], " ")
			if text == "" || text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			st := &session.State{SelectedDate: args[0]}
			entry, err := svc.Save(cmd.Context(), st, args[0], text)
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), entry)
			return nil
		}),
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete DATE",
		Short: "Delete the entry of one day",
		Args:  cobra.ExactArgs(1),
		RunE: c.withJournal(func(cmd *cobra.Command, args []string, svc *journal.Service) error {
			date := args[0]
			st := &session.State{SelectedDate: date}
			if err := svc.RequestDelete(st, date); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete the entry for %s? [y/N] ", date)) {
				svc.CancelDelete(st)
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}

			deleted, err := svc.ConfirmDelete(cmd.Context(), st, date)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Fprintf(out, "Deleted the entry for %s.\n", date)
			} else {
				fmt.Fprintf(out, "No entry for %s.\n", date)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printList(w io.Writer, entries []models.DiaryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return
	}
	for _, e := range entries {
		tier := score.TierFor(e.TotalScore)
		fmt.Fprintf(w, "%s  %5.2f %s  %s\n", e.Date, e.TotalScore, tier.Emoji(), strings.Join(e.Keywords, ", "))
	}
}

func printEntry(w io.Writer, e models.DiaryEntry) {
	tier := score.TierFor(e.TotalScore)
	fmt.Fprintf(w, "%s  %.2f / 10 %s (%s)\n\n", e.Date, e.TotalScore, tier.Emoji(), tier)
	fmt.Fprintln(w, e.Content)
	fmt.Fprintln(w)
	if len(e.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords: %s\n", strings.Join(e.Keywords, ", "))
	}
	r := e.Ratings
	fmt.Fprintf(w, "Joy %d  Sadness %d  Anger %d  Anxiety %d  Calmness %d\n", r.Joy, r.Sadness, r.Anger, r.Anxiety, r.Calmness)
	if e.Message != "" {
		fmt.Fprintf(w, "\n%s\n", e.Message)
	}
}
