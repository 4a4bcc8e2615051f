package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/storage"
)

func (c *cli) exportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry to stdout",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			entries, err := svc.All(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				return writeCSV(out, entries)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "md":
				writeMarkdown(out, entries)
				return nil
			default:
				return fmt.Errorf("unknown format %q (csv, json, md)", format)
			}
		}),
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv, json, md")
	return cmd
}

// writeCSV uses the table layout, so an export can seed any backend
func writeCSV(w io.Writer, entries []models.DiaryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(storage.Columns); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(diary.SerializeRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, entries []models.DiaryEntry) {
	fmt.Fprintln(w, "# Emotion diary")
	for _, e := range entries {
		fmt.Fprintf(w, "\n## %s (%.2f)\n\n", e.Date, e.TotalScore)
		fmt.Fprintln(w, e.Content)
		if len(e.Keywords) > 0 {
			fmt.Fprintf(w, "\n_Keywords: %s_\n", strings.Join(e.Keywords, ", "))
		}
		if e.Message != "" {
			fmt.Fprintf(w, "\n> %s\n", e.Message)
		}
	}
}
