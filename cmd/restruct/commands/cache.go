package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/restruct/pkg/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
	Long: `Structured results are cached by the fingerprint of their CFG description
in the configured cache directory.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache location and contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(appConfig.CacheDir, appConfig.CacheMaxEntries)
		if err != nil {
			return err
		}
		stats := store.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Path:    %s\n", store.Path())
		fmt.Fprintf(out, "Enabled: %t\n", appConfig.CacheEnabled)
		fmt.Fprintf(out, "Entries: %d (max %d)\n", stats.Length, appConfig.CacheMaxEntries)
		fmt.Fprintf(out, "Size:    %d bytes\n", stats.CurrentBytes)

		if list, _ := cmd.Flags().GetBool("list"); list {
			for _, e := range store.Entries() {
				name := e.Result.Name
				if name == "" {
					name = "<unnamed>"
				}
				fmt.Fprintf(out, "  %s  %-24s %3d blocks  %s\n",
					e.Key[:min(12, len(e.Key))], name, e.Result.Blocks, e.AccessedAt.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(appConfig.CacheDir, cache.FileName)
		store, err := cache.Open(appConfig.CacheDir, appConfig.CacheMaxEntries)
		if err != nil {
			logger.Warn("cache file unreadable, removing it", "path", path, "err", err)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing cache file: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed unreadable cache file")
			return nil
		}
		n := store.Len()
		if err := store.Purge(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results\n", n)
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().BoolP("list", "l", false, "List cached entries, most recently used first")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
