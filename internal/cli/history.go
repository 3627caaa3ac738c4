package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history ORIGIN DEST",
		Short: "Show recorded daily prices for a route",
		Args:  cobra.ExactArgs(2),
		Run:   runHistory,
	}
	cmd.Flags().Int("days", 30, "Look back this many days (0 for all)")
	cmd.Flags().String("kind", "", "Only this booking kind: one-way, round-trip, two-oneways or skiplagged")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	kind, _ := cmd.Flags().GetString("kind")
	if kind != "" && !model.ValidBookingKinds[model.BookingKind(kind)] {
		exitErr("history", fmt.Errorf("unknown booking kind %q", kind))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	b, err := openBackends(cmd.Context(), s)
	if err != nil {
		exitErr("open backends", err)
	}
	defer b.Close()

	p := store.TrendParams{
		Origin:      model.NormalizeAirport(args[0]),
		Destination: model.NormalizeAirport(args[1]),
		BookingKind: kind,
	}
	if days > 0 {
		p.Since = time.Now().AddDate(0, 0, -days)
	}

	points, err := b.trends.PriceTrend(cmd.Context(), p)
	if err != nil {
		exitErr("price trend", err)
	}

	if jsonOutput() {
		if points == nil {
			points = []store.TrendPoint{}
		}
		printJSON(map[string]any{"route": p.Origin + "-" + p.Destination, "points": points})
		return
	}
	if len(points) == 0 {
		fmt.Printf("no prices recorded for %s-%s\n", p.Origin, p.Destination)
		return
	}
	rows := make([][]string, 0, len(points))
	for _, tp := range points {
		rows = append(rows, []string{tp.Day, tp.Min.String(), tp.Avg.String(), tp.Max.String(), strconv.Itoa(tp.Samples)})
	}
	fmt.Println(simpleTable([]string{"Day", "Min", "Avg", "Max", "Samples"}, rows))
}
