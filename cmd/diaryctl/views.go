package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/notifications"
	"github.com/moodlog/emotion-diary/internal/score"
)

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics over the recent window",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			printStats(cmd.OutOrStdout(), svc.Stats(cmd.Context()))
			return nil
		}),
	}
}

func (c *cli) trendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Show the score series and the week-over-week comparison",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			printTrends(cmd.OutOrStdout(), svc.Trends(cmd.Context()))
			return nil
		}),
	}
}

func (c *cli) adviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advice",
		Short: "Ask every expert persona for advice over the whole diary",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			advice, err := svc.Advice(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(advice) == 0 {
				fmt.Fprintln(out, "No entries to advise on.")
				return nil
			}
			for _, a := range advice {
				fmt.Fprintf(out, "## %s\n%s\n\n", a.Persona, a.Text)
			}
			return nil
		}),
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the periodic emotion report",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			if period != config.ScheduleDaily && period != config.ScheduleWeekly {
				return fmt.Errorf("--period must be daily or weekly, got %q", period)
			}
			report := svc.Report(cmd.Context(), period)
			fmt.Fprint(cmd.OutOrStdout(), notifications.BuildEmailText(report))
			return nil
		}),
	}
	cmd.Flags().StringVar(&period, "period", config.ScheduleWeekly, "Report period: daily or weekly")
	return cmd
}

func printStats(w io.Writer, stats models.Stats) {
	agg := stats.Aggregate
	fmt.Fprintf(w, "Entries:       %d\n", agg.EntryCount)
	fmt.Fprintf(w, "Average score: %.2f %s\n", agg.AverageScore, score.TierFor(agg.AverageScore).Emoji())
	fmt.Fprintf(w, "Characters:    %d\n", agg.CharCount)
	fmt.Fprintf(w, "Active months: %d\n", agg.ActiveMonths)
	if d := stats.Dominant; d != nil {
		fmt.Fprintf(w, "Dominant emotion (last 7): %s %.1f\n", d.Emotion, d.Mean)
	}
	if len(stats.TopKeywords) > 0 {
		fmt.Fprintln(w, "\nTop keywords:")
		for i, k := range stats.TopKeywords {
			fmt.Fprintf(w, "%2d. %s (%d)\n", i+1, k.Keyword, k.Count)
		}
	}
}

func printTrends(w io.Writer, trends models.Trends) {
	if len(trends.Series) == 0 {
		fmt.Fprintln(w, "No entries.")
		return
	}
	for _, p := range trends.Series {
		fmt.Fprintf(w, "%s  %5.2f  %s\n", p.Date, p.TotalScore, bar(p.TotalScore))
	}

	c := trends.Comparison
	if c == nil {
		fmt.Fprintln(w, "\nAt least 14 entries are needed to compare weeks.")
		return
	}
	fmt.Fprintln(w, "\nLast 7 vs previous 7:")
	rows := []struct {
		name string
		cmp  models.FieldComparison
	}{
		{"total", c.TotalScore},
		{"joy", c.Joy},
		{"sadness", c.Sadness},
		{"anger", c.Anger},
		{"anxiety", c.Anxiety},
		{"calmness", c.Calmness},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-9s %5.2f -> %5.2f  %+.2f %s\n", r.name, r.cmp.Previous, r.cmp.Recent, r.cmp.Difference, r.cmp.Trend)
	}
}

func bar(v float64) string {
	n := int(v + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 10 {
		n = 10
	}
	return strings.Repeat("█", n)
}
