package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/llmgeo"
)

var llmGeocodeCmd = &cobra.Command{
	Use:   "llm-geocode",
	Short: "Ask a language model for the location of every site name",
	Long: `Collects candidate site names from every CSV in the source directory and
asks a text-generation model for "Site Name, City, State, Latitude, Longitude"
rows. Replies that do not look like a five-column row are dropped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if v, _ := cmd.Flags().GetString("dir"); v != "" {
			cfg.Sources.Dir = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.LLM.Output = v
		}
		if v, _ := cmd.Flags().GetString("provider"); v != "" {
			cfg.LLM.Provider = v
		}
		limit, _ := cmd.Flags().GetInt("limit")

		if err := cfg.Validate("llm"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		names, err := llmgeo.HarvestSiteNames(cfg.Sources.Dir, cfg.Sources.FallbackEncoding)
		if err != nil {
			return eris.Wrap(err, "llm-geocode: harvest names")
		}
		if limit > 0 && limit < len(names) {
			names = names[:limit]
		}

		completer, err := initCompleter(cfg.LLM)
		if err != nil {
			return err
		}

		rows, stats, runErr := llmgeo.Run(ctx, completer, names)
		// Partial results are still written when interrupted.
		if err := llmgeo.WriteRows(cfg.LLM.Output, rows); err != nil {
			return err
		}

		zap.L().Info("llm-geocode complete",
			zap.String("run_id", runID),
			zap.String("provider", completer.Name()),
			zap.Int("sites", stats.Sites),
			zap.Int("accepted", stats.Accepted),
			zap.Int("malformed", stats.Malformed),
			zap.Int("failed", stats.Failed),
		)
		fmt.Fprintf(os.Stderr, "Done! Saved %d rows to %s\n", len(rows), cfg.LLM.Output)
		return runErr
	},
}

func init() {
	llmGeocodeCmd.Flags().String("dir", "", "directory of CSV files to harvest names from (overrides sources.dir)")
	llmGeocodeCmd.Flags().StringP("output", "o", "", "output CSV path (overrides llm.output)")
	llmGeocodeCmd.Flags().String("provider", "", "groq or anthropic (overrides llm.provider)")
	llmGeocodeCmd.Flags().Int("limit", 0, "process at most this many names (0 = all)")
	rootCmd.AddCommand(llmGeocodeCmd)
}
