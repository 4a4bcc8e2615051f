package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodlog/emotion-diary/internal/analysis"
	"github.com/moodlog/emotion-diary/internal/journal"
)

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the storage backend and the language model",
		Args:  cobra.NoArgs,
		RunE: c.withJournal(func(cmd *cobra.Command, _ []string, svc *journal.Service) error {
			out := cmd.OutOrStdout()
			result := svc.Check(cmd.Context())

			fmt.Fprintln(out, "🔍 Emotion Diary - Connectivity Check")
			if result.BackendError != nil {
				fmt.Fprintf(out, "❌ Storage: %v\n", result.BackendError)
			} else {
				fmt.Fprintf(out, "✅ Storage: %d entries\n", result.Entries)
			}

			switch {
			case errors.Is(result.ProviderError, analysis.ErrProviderDisabled):
				fmt.Fprintln(out, "⚪ Language model: disabled, fallbacks apply")
			case result.ProviderError != nil:
				fmt.Fprintf(out, "❌ Language model (%s): %v\n", result.Provider, result.ProviderError)
			default:
				fmt.Fprintf(out, "✅ Language model (%s): OK\n", result.Provider)
			}

			if result.BackendError != nil {
				return fmt.Errorf("storage backend unreachable: %w", result.BackendError)
			}
			return nil
		}),
	}
}
