package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local price cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count cached results by freshness",
		Args:  cobra.NoArgs,
		Run:   runCacheStats,
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached results",
		Args:  cobra.NoArgs,
		Run:   runCacheClear,
	}
	clear.Flags().Duration("older-than", 0, "Only delete entries fetched longer ago than this")

	cmd.AddCommand(stats, clear)
	RootCmd.AddCommand(cmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := s.CacheStats(cmd.Context(), cfg.CacheTTL)
	if err != nil {
		exitErr("cache stats", err)
	}
	if jsonOutput() {
		printJSON(map[string]any{"ttl": cfg.CacheTTL.String(), "entries": st.Entries, "fresh": st.Fresh, "stale": st.Stale})
		return
	}
	fmt.Printf("%d entries: %d fresh, %d older than %s\n", st.Entries, st.Fresh, st.Stale, cfg.CacheTTL)
	if cfg.RedisURL != "" {
		warnf("note: searches use the Redis cache; these counts cover the local cache only")
	}
}

func runCacheClear(cmd *cobra.Command, args []string) {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan < 0 {
		exitErr("cache clear", fmt.Errorf("--older-than must not be negative"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.ClearCache(cmd.Context(), olderThan)
	if err != nil {
		exitErr("cache clear", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%d}`+"\n", n)
}
