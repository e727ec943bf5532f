package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the geocode cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show geocode cache counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		ctx := cmd.Context()

		cache, err := openCache(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer cache.Close(ctx) //nolint:errcheck

		s := cache.Stats()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Driver\t%s\n", cfg.Cache.Driver)
		fmt.Fprintf(w, "Entries\t%d\n", s.Entries)
		fmt.Fprintf(w, "Matched\t%d\n", s.Matched)
		fmt.Fprintf(w, "No result\t%d\n", s.NoResult)
		return w.Flush()
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <address>...",
	Short: "Remove addresses from the geocode cache so the next merge looks them up again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		ctx := cmd.Context()

		cache, err := openCache(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer cache.Close(ctx) //nolint:errcheck

		n, err := cache.Evict(ctx, args...)
		if err != nil {
			return eris.Wrap(err, "cache evict")
		}
		fmt.Fprintf(os.Stderr, "Evicted %d of %d addresses\n", n, len(args))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
	rootCmd.AddCommand(cacheCmd)
}
