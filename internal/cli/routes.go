package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/routes"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Manage the airline route database used for skiplagged discovery",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Download the OpenFlights route database",
		Args:  cobra.NoArgs,
		Run:   runRoutesUpdate,
	}
	update.Flags().String("url", routes.OpenFlightsURL, "routes.dat location")

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load routes from a local routes.dat file",
		Args:  cobra.ExactArgs(1),
		Run:   runRoutesImport,
	}

	from := &cobra.Command{
		Use:   "from AIRPORT",
		Short: "List airports reachable nonstop from AIRPORT",
		Args:  cobra.ExactArgs(1),
		Run:   runRoutesFrom,
	}

	count := &cobra.Command{
		Use:   "count",
		Short: "Count cataloged routes",
		Args:  cobra.NoArgs,
		Run:   runRoutesCount,
	}

	cmd.AddCommand(update, importCmd, from, count)
	RootCmd.AddCommand(cmd)
}

func runRoutesUpdate(cmd *cobra.Command, args []string) {
	url, _ := cmd.Flags().GetString("url")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	written, skipped, err := routes.Refresh(cmd.Context(), routes.NewFetcher(url), s)
	if err != nil {
		exitErr("update routes", err)
	}
	fmt.Printf(`{"ok":true,"routes":%d,"skipped":%d}`+"\n", written, skipped)
}

func runRoutesImport(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		exitErr("open routes file", err)
	}
	defer f.Close()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	written, skipped, err := routes.Load(cmd.Context(), f, s)
	if err != nil {
		exitErr("import routes", err)
	}
	fmt.Printf(`{"ok":true,"routes":%d,"skipped":%d}`+"\n", written, skipped)
}

func runRoutesFrom(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	edges, err := s.RoutesFrom(cmd.Context(), args[0])
	if err != nil {
		exitErr("routes from", err)
	}

	if jsonOutput() {
		if edges == nil {
			edges = []model.RouteEdge{}
		}
		printJSON(edges)
		return
	}
	if len(edges) == 0 {
		fmt.Printf("no routes cataloged from %s; run `flightfinder routes update`\n", model.NormalizeAirport(args[0]))
		return
	}
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{e.Destination, e.Carrier, e.LastUpdated.Format("2006-01-02")})
	}
	fmt.Println(simpleTable([]string{"Destination", "Airline", "Updated"}, rows))
	fmt.Println(mutedStyle.Render(strconv.Itoa(len(edges)) + " routes"))
}

func runRoutesCount(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.CountRoutes(cmd.Context())
	if err != nil {
		exitErr("count routes", err)
	}
	fmt.Printf(`{"routes":%d}`+"\n", n)
}
