package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/cache"
	"github.com/dshills/loupe/internal/config"
)

var (
	flagCacheExpired bool
	flagCacheJSON    bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or empty the review cache",
	Long: `Finished reviews are cached by backend, target and prompt so that asking
for the same review twice does not hit the API again. The cache is off unless
cache.enabled is true, but clear and prune work on the directory either way.`,
}

// openCache opens the configured cache. force opens it even when caching is
// disabled so that stale entries can still be removed.
func openCache(force bool) (*cache.Cache, error) {
	cfg, err := config.Load(globalOverrides())
	if err != nil {
		return nil, err
	}
	c, err := cache.New(force || cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached reviews",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(true)
		if err != nil {
			return err
		}
		remove, what := c.Clear, "entries"
		if flagCacheExpired {
			remove, what = c.Prune, "expired entries"
		}
		n, err := remove()
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		successColor.Fprintf(cmd.OutOrStdout(), "Removed %d %s from %s\n", n, what, c.Dir())
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where the cache lives and what it holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(false)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !c.Enabled() {
			warnColor.Fprintln(out, "Cache is disabled (set cache.enabled to true).")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}
		if flagCacheJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		ttl := "never expires"
		if stats.TTLSeconds > 0 {
			ttl = (time.Duration(stats.TTLSeconds) * time.Second).String()
		}
		fmt.Fprintf(out, "dir:     %s\n", stats.Dir)
		fmt.Fprintf(out, "entries: %d (%d expired)\n", stats.Entries, stats.Expired)
		fmt.Fprintf(out, "size:    %s\n", humanize.IBytes(uint64(stats.TotalBytes)))
		fmt.Fprintf(out, "ttl:     %s\n", ttl)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&flagCacheExpired, "expired", false, "only remove entries past their TTL")
	cacheShowCmd.Flags().BoolVar(&flagCacheJSON, "json", false, "print the statistics as JSON")
	cacheCmd.AddCommand(cacheClearCmd, cacheShowCmd)
}
