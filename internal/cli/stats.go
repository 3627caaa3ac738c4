package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.CacheTTL)
	if err != nil {
		exitErr("stats", err)
	}

	if jsonOutput() {
		printJSON(stats)
		return
	}

	fmt.Println(simpleTable([]string{"", ""}, [][]string{
		{"Database", stats.DBPath},
		{"Size", strconv.FormatInt(stats.DBSizeBytes/1024, 10) + " KiB"},
		{"Routes", fmt.Sprintf("%d from %d airports", stats.Routes, stats.Airports)},
		{"Cache", fmt.Sprintf("%d entries (%d fresh, %d stale)", stats.Cache.Entries, stats.Cache.Fresh, stats.Cache.Stale)},
		{"Searches", strconv.Itoa(stats.Searches)},
		{"Prices", strconv.Itoa(stats.Prices)},
	}))
	if len(stats.TopRoutes) == 0 {
		return
	}
	rows := make([][]string, 0, len(stats.TopRoutes))
	for _, rc := range stats.TopRoutes {
		rows = append(rows, []string{rc.Route, strconv.Itoa(rc.Count)})
	}
	fmt.Println(simpleTable([]string{"Route", "Prices"}, rows))
}
